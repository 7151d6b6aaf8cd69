package overpass

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

const DefaultMaxRetries = 5

type options struct {
	maxRetries int
	tag        string
	sleep      func(ctx context.Context, d time.Duration) error
	jitter     func() float64
	logger     *slog.Logger
}

func loadOptions(opts ...Option) options {
	o := options{
		maxRetries: DefaultMaxRetries,
		tag:        "building",
		sleep:      sleepContext,
		jitter:     rand.Float64,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

type Option interface {
	apply(*options)
}

type maxRetries int

func (r maxRetries) apply(o *options) {
	if r > 0 {
		o.maxRetries = int(r)
	}
}

// Default: 5
func WithMaxRetries(n int) Option {
	return maxRetries(n)
}

type tagFilter string

func (t tagFilter) apply(o *options) {
	o.tag = string(t)
}

// Default: building
func WithTag(tag string) Option {
	return tagFilter(tag)
}

type sleeper func(ctx context.Context, d time.Duration) error

func (s sleeper) apply(o *options) {
	o.sleep = s
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return sleeper(sleep)
}

type jitterSource func() float64

func (j jitterSource) apply(o *options) {
	o.jitter = j
}

// WithJitter sets the source of the uniform [0,1) backoff jitter.
func WithJitter(jitter func() float64) Option {
	return jitterSource(jitter)
}

type loggerOption struct {
	logger *slog.Logger
}

func (l loggerOption) apply(o *options) {
	if l.logger != nil {
		o.logger = l.logger
	}
}

func WithLogger(logger *slog.Logger) Option {
	return loggerOption{logger: logger}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
