package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/royalcat/floodgen/pipeline"
	"github.com/royalcat/floodgen/progress"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/royalcat/floodgen/server")

// Status is the body of GET /progress.
type Status struct {
	State            progress.State   `json:"state"`
	Regions          int              `json:"regions"`
	CompletedChunks  int              `json:"completed_chunks"`
	ChunksProcessed  int64            `json:"chunks_processed"`
	ChunksSkipped    int64            `json:"chunks_skipped"`
	BuildingsFetched int64            `json:"buildings_fetched"`
	Matched          map[string]int64 `json:"matched"`
	Uptime           string           `json:"uptime"`
}

// Run serves the progress of a running pipeline until ctx is done.
func Run(ctx context.Context, address string, store *progress.Store, stats *pipeline.Stats, regions int) error {
	log := slog.With("component", "status_server")

	s, err := newServer(store, stats, regions)
	if err != nil {
		return err
	}

	server := &fasthttp.Server{
		ReadTimeout: time.Second,
		Handler:     s.router().Handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("status server listening", "address", address)
		errCh <- server.ListenAndServe(address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

type server struct {
	store   *progress.Store
	stats   *pipeline.Stats
	regions int
	started time.Time

	metricProgressCallCount metric.Int64Counter
}

func newServer(store *progress.Store, stats *pipeline.Stats, regions int) (*server, error) {
	progressCalls, err := meter.Int64Counter("http_progress_call_total")
	if err != nil {
		return nil, err
	}
	return &server{
		store:                   store,
		stats:                   stats,
		regions:                 regions,
		started:                 time.Now(),
		metricProgressCallCount: progressCalls,
	}, nil
}

func (s *server) router() *router.Router {
	r := router.New()
	r.GET("/progress", s.ProgressHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	return r
}

func (s *server) ProgressHandler(ctx *fasthttp.RequestCtx) {
	s.metricProgressCallCount.Add(ctx, 1)

	state := s.store.Snapshot()
	status := Status{
		State:            state,
		Regions:          s.regions,
		CompletedChunks:  state.CompletedChunks(),
		ChunksProcessed:  s.stats.ChunksProcessed.Value(),
		ChunksSkipped:    s.stats.ChunksSkipped.Value(),
		BuildingsFetched: s.stats.BuildingsFetched.Value(),
		Matched:          s.stats.Matched(),
		Uptime:           time.Since(s.started).Round(time.Second).String(),
	}

	out, err := json.Marshal(status)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString("failed to marshal response")
		return
	}

	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.SetBody(out)
}
