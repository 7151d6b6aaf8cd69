package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cheggaaa/pb/v3/termutil"
	"github.com/paulmach/orb"
	"github.com/royalcat/floodgen/crs"
	"github.com/royalcat/floodgen/geomodel"
	"github.com/royalcat/floodgen/grid"
	"github.com/royalcat/floodgen/hazard"
	"github.com/royalcat/floodgen/progress"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/royalcat/floodgen/pipeline"

var meter = otel.Meter(instrumentation)

type Fetcher interface {
	Fetch(ctx context.Context, bound orb.Bound) []geomodel.Building
}

type Matcher interface {
	Match(ctx context.Context, buildings []geomodel.Building, layers []*hazard.Layer, regionHash, chunkID string) (map[string]int, error)
}

type Options struct {
	Step       float64
	ChunkPause time.Duration

	// StartRegion and StartChunk position a manual restart: in the region
	// with index StartRegion every chunk before StartChunk is skipped, once.
	StartRegion int
	StartChunk  string

	ShowProgress bool
	Sleep        func(ctx context.Context, d time.Duration) error
	Logger       *slog.Logger
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

// RegionProcessor walks the chunk grid of one region at a time.
type RegionProcessor struct {
	fetcher  Fetcher
	matcher  Matcher
	layers   []*hazard.Layer
	progress *progress.Store
	stats    *Stats

	step         float64
	pause        time.Duration
	startRegion  int
	startChunk   string
	startUsed    bool
	showProgress bool
	sleep        func(ctx context.Context, d time.Duration) error
	log          *slog.Logger
	tracer       trace.Tracer

	metricChunks metric.Int64Counter
}

func NewRegionProcessor(fetcher Fetcher, matcher Matcher, layers []*hazard.Layer, store *progress.Store, stats *Stats, opts Options) *RegionProcessor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if stats == nil {
		stats = NewStats()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentation)
	}

	chunks, err := meter.Int64Counter("chunks_total")
	if err != nil {
		opts.Logger.Warn("error creating chunks counter", "error", err)
	}

	return &RegionProcessor{
		fetcher:      fetcher,
		matcher:      matcher,
		layers:       layers,
		progress:     store,
		stats:        stats,
		step:         opts.Step,
		pause:        opts.ChunkPause,
		startRegion:  opts.StartRegion,
		startChunk:   opts.StartChunk,
		showProgress: opts.ShowProgress,
		sleep:        opts.Sleep,
		log:          opts.Logger.With("component", "region_processor"),
		tracer:       opts.Tracer,
		metricChunks: chunks,
	}
}

// Process runs every pending chunk of region and returns the region hash.
// It returns ErrInterrupted when ctx is cancelled; the chunk in flight is then
// left uncompleted and will be redone on resume.
func (p *RegionProcessor) Process(ctx context.Context, region grid.Region, index int) (string, error) {
	hash := region.Hash()
	log := p.log.With("region", index+1, "bbox", region.String())

	chunks, err := region.Chunks(p.step)
	if err != nil {
		return hash, err
	}

	startChunk := ""
	if p.startChunk != "" && index == p.startRegion && !p.startUsed {
		startChunk = p.startChunk
		if !containsChunk(chunks, startChunk) {
			return hash, fmt.Errorf("start chunk %s is not part of region %d", startChunk, index)
		}
		p.startUsed = true
	}
	started := startChunk == ""

	log.Info("processing region", "hash", hash, "chunks", len(chunks))
	bar := p.newBar(len(chunks), fmt.Sprintf("region %d", index+1))
	defer bar.Finish()

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return hash, ErrInterrupted
		}

		if !started {
			if chunk.ID != startChunk {
				log.Debug("skipping chunk before start point", "chunk", chunk.ID)
				p.skip(ctx, bar)
				continue
			}
			started = true
		}

		if p.progress.IsChunkDone(index, chunk.ID) {
			log.Debug("skipping already processed chunk", "chunk", chunk.ID)
			p.skip(ctx, bar)
			continue
		}

		if err := p.processChunk(ctx, hash, index, chunk, log); err != nil {
			return hash, err
		}
		bar.Increment()

		if p.pause > 0 {
			if err := p.sleep(ctx, p.pause); err != nil {
				return hash, ErrInterrupted
			}
		}
	}

	log.Info("region complete", "hash", hash)
	return hash, nil
}

func (p *RegionProcessor) processChunk(ctx context.Context, hash string, index int, chunk grid.Chunk, log *slog.Logger) (err error) {
	log = log.With("chunk", chunk.ID)

	ctx, span := p.tracer.Start(ctx, "chunk", trace.WithAttributes(
		attribute.String("chunk", chunk.ID),
		attribute.Int("region", index),
		attribute.String("region_hash", hash),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := p.progress.BeginChunk(index, chunk.ID); err != nil {
		return err
	}

	buildings := p.fetcher.Fetch(ctx, chunk.Bound)
	if ctx.Err() != nil {
		return ErrInterrupted
	}

	span.SetAttributes(attribute.Int("buildings", len(buildings)))

	if len(buildings) > 0 {
		log.Info("fetched buildings", "count", len(buildings))
		p.stats.BuildingsFetched.Add(int64(len(buildings)))

		for i := range buildings {
			buildings[i].Geometry = crs.ProjectInPlace(buildings[i].Geometry, crs.ToWorking)
		}

		counts, err := p.matcher.Match(ctx, buildings, p.layers, hash, chunk.ID)
		clear(buildings)
		p.stats.AddMatched(counts)
		if err != nil {
			if ctx.Err() != nil {
				return ErrInterrupted
			}
			p.countChunk(ctx, "failed")
			return fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
	} else {
		log.Info("no buildings found in chunk")
	}

	if err := p.progress.CompleteChunk(index, chunk.ID); err != nil {
		return err
	}
	p.stats.ChunksProcessed.Inc()
	p.countChunk(ctx, "processed")
	return nil
}

func (p *RegionProcessor) skip(ctx context.Context, bar *pb.ProgressBar) {
	p.stats.ChunksSkipped.Inc()
	p.countChunk(ctx, "skipped")
	bar.Increment()
}

func (p *RegionProcessor) countChunk(ctx context.Context, outcome string) {
	if p.metricChunks == nil {
		return
	}
	p.metricChunks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (p *RegionProcessor) newBar(total int, name string) *pb.ProgressBar {
	bar := pb.New(total)
	bar.Set("prefix", name)
	bar.SetRefreshRate(time.Second)
	if !p.showProgress {
		bar.SetWriter(io.Discard)
	} else if w, err := termutil.TerminalWidth(); w == 0 || err != nil {
		bar.SetTemplateString(`{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }} {{rtime . "ETA %s"}}` + "\n")
	}
	return bar.Start()
}

func containsChunk(chunks []grid.Chunk, id string) bool {
	for _, c := range chunks {
		if c.ID == id {
			return true
		}
	}
	return false
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
