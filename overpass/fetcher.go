package overpass

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/royalcat/floodgen/geomodel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/royalcat/floodgen/overpass")

// Fetcher retrieves the buildings of a chunk, retrying transient failures with
// exponential backoff and rotating through alternate endpoints.
type Fetcher struct {
	provider   Provider
	primary    string
	alternates []string

	maxRetries int
	tag        string
	sleep      func(ctx context.Context, d time.Duration) error
	jitter     func() float64
	log        *slog.Logger

	metricAttempts metric.Int64Counter
}

func NewFetcher(provider Provider, primary string, alternates []string, opts ...Option) *Fetcher {
	o := loadOptions(opts...)

	if len(alternates) == 0 {
		alternates = []string{primary}
	}

	attempts, err := meter.Int64Counter("overpass_fetch_attempts_total")
	if err != nil {
		o.logger.Warn("error creating fetch attempts counter", "error", err)
	}

	return &Fetcher{
		provider:       provider,
		primary:        primary,
		alternates:     append([]string(nil), alternates...),
		maxRetries:     o.maxRetries,
		tag:            o.tag,
		sleep:          o.sleep,
		jitter:         o.jitter,
		log:            o.logger.With("component", "fetcher"),
		metricAttempts: attempts,
	}
}

// Delay is the wait before the given attempt: 2^attempt seconds plus up to one
// second of jitter.
func (f *Fetcher) Delay(attempt int) time.Duration {
	seconds := math.Pow(2, float64(attempt)) + f.jitter()
	return time.Duration(seconds * float64(time.Second))
}

// Endpoint returns the endpoint used by the given attempt.
func (f *Fetcher) Endpoint(attempt int) string {
	if attempt == 0 {
		return f.primary
	}
	return f.alternates[(attempt-1)%len(f.alternates)]
}

// Fetch never fails: exhausted retries, a confirmed empty area and cancellation
// all yield an empty result. Callers tell cancellation apart through ctx.Err().
func (f *Fetcher) Fetch(ctx context.Context, bound orb.Bound) []geomodel.Building {
	log := f.log.With("bound", bound)

	for attempt := range f.maxRetries {
		if attempt > 0 {
			delay := f.Delay(attempt)
			log.Info("retrying fetch", "attempt", attempt+1, "max_retries", f.maxRetries, "delay", delay)
			if err := f.sleep(ctx, delay); err != nil {
				log.Warn("fetch cancelled during backoff", "error", err)
				return nil
			}
		}

		endpoint := f.Endpoint(attempt)
		resp := f.provider.Query(ctx, endpoint, bound, f.tag)
		f.countAttempt(ctx, endpoint, resp.Status)

		switch resp.Status {
		case StatusFound:
			return resp.Buildings
		case StatusConfirmedEmpty:
			log.Info("no matching features in area, skipping retries")
			return nil
		}

		log.Warn("error fetching buildings", "attempt", attempt+1, "endpoint", endpoint, "error", resp.Err)
		if ctx.Err() != nil {
			return nil
		}
	}

	log.Warn("fetch retries exhausted, returning empty result", "max_retries", f.maxRetries)
	return nil
}

func (f *Fetcher) countAttempt(ctx context.Context, endpoint string, status Status) {
	if f.metricAttempts == nil {
		return
	}
	f.metricAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status.String()),
	))
}
