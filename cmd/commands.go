package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/royalcat/floodgen/config"
	"github.com/royalcat/floodgen/grid"
	"github.com/royalcat/floodgen/hazard"
	"github.com/royalcat/floodgen/internal/stats"
	"github.com/royalcat/floodgen/internal/telemetry"
	"github.com/royalcat/floodgen/matcher"
	"github.com/royalcat/floodgen/merger"
	"github.com/royalcat/floodgen/overpass"
	"github.com/royalcat/floodgen/pipeline"
	"github.com/royalcat/floodgen/progress"
	"github.com/royalcat/floodgen/server"
	"github.com/urfave/cli/v3"
)

type flagSource interface {
	IsSet(name string) bool
	String(name string) string
	Float64(name string) float64
	Float64Slice(name string) []float64
	Int(name string) int
}

// bboxValues collects S W N E from --bbox, which takes a comma list or a single
// value followed by the remaining bounds as arguments, or from four bare arguments.
func bboxValues(c flagSource, args []string) ([]float64, bool, error) {
	var values []float64
	if c.IsSet("bbox") {
		values = c.Float64Slice("bbox")
	} else if len(args) != 4 {
		return nil, false, nil
	}
	for _, a := range args {
		if len(values) == 4 {
			break
		}
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, false, fmt.Errorf("bbox value %q: %w", a, err)
		}
		values = append(values, v)
	}
	return values, true, nil
}

// loadConfig layers the YAML file and the command line over the defaults.
func loadConfig(c flagSource, args []string) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}

	values, ok, err := bboxValues(c, args)
	if err != nil {
		return cfg, err
	}
	if ok {
		r, err := grid.ParseBBox(values)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.WithBBox(r)
	}
	if c.IsSet("step") {
		cfg.Step = c.Float64("step")
	}
	if c.IsSet("output") {
		cfg.OutputDir = c.String("output")
	}
	if c.IsSet("hazard-dir") {
		cfg.HazardDir = c.String("hazard-dir")
	}
	if c.IsSet("threads") && c.Int("threads") > 0 {
		cfg.Threads = c.Int("threads")
	}

	return cfg, cfg.Validate()
}

// resumeCommand is the command line suggested after an abnormal stop.
func resumeCommand(args []string) string {
	out := make([]string, 0, len(args)+1)
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "--start-region" || a == "--start-chunk":
			i++
		case strings.HasPrefix(a, "--start-region=") || strings.HasPrefix(a, "--start-chunk="):
		default:
			out = append(out, a)
		}
	}
	if len(out) > 0 {
		out[0] = filepath.Base(out[0])
	}
	if !slices.Contains(out, "--resume") {
		out = append(out, "--resume")
	}
	return strings.Join(out, " ")
}

func setupTelemetry(ctx context.Context) func() {
	client, err := telemetry.Setup(ctx, "floodgen")
	if err != nil {
		slog.Warn("error setting up telemetry", "error", err)
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Flush(ctx); err != nil {
			slog.Warn("error flushing telemetry", "error", err)
		}
		client.Shutdown(ctx)
	}
}

// interrupted turns failures caused by a cancelled ctx into ErrInterrupted.
func interrupted(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil || errors.Is(err, pipeline.ErrInterrupted) {
		return err
	}
	return fmt.Errorf("%w: %w", pipeline.ErrInterrupted, err)
}

func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return interrupted(ctx, runPipeline(ctx, c))
}

func runPipeline(ctx context.Context, c *cli.Context) error {
	shutdown := setupTelemetry(ctx)
	defer shutdown()
	log := slog.Default()

	cfg, err := loadConfig(c, c.Args().Slice())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	startRegion := c.Int("start-region")
	if startRegion < 0 || startRegion >= len(cfg.Regions) {
		return fmt.Errorf("start region %d out of range, %d regions configured", startRegion, len(cfg.Regions))
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}

	st := pipeline.NewStats()
	if path := c.String("stats-file"); path != "" {
		collector, err := stats.NewCollector(time.Second, func() map[string]int64 { return counters(st) })
		if err != nil {
			return err
		}
		collector.Start()
		defer func() {
			report := collector.Stop()
			if err := report.SaveToFile(path); err != nil {
				log.Error("error saving stats", "error", err)
			}
		}()
	}

	layers, err := hazard.Load(ctx, cfg.HazardDir, cfg.HazardSources, cfg.Threads, log)
	if err != nil {
		return err
	}
	if len(layers.Layers()) == 0 {
		return fmt.Errorf("no hazard layers found in %s", cfg.HazardDir)
	}

	store, err := progress.Open(filepath.Join(cfg.OutputDir, progress.FileName), c.Bool("resume"), startRegion)
	if err != nil {
		return err
	}

	client := overpass.NewClient(overpass.NewHTTPClient(cfg.Overpass.HTTPTimeout), cfg.Overpass.ServerTimeout, log)
	fetcher := overpass.NewFetcher(client, cfg.Overpass.Primary, cfg.Overpass.Alternates,
		overpass.WithMaxRetries(cfg.Overpass.MaxRetries),
		overpass.WithLogger(log),
	)

	processor := pipeline.NewRegionProcessor(
		fetcher,
		matcher.New(cfg.OutputDir, cfg.SimplifyTolerance, log),
		layers.Layers(),
		store,
		st,
		pipeline.Options{
			Step:         cfg.Step,
			ChunkPause:   cfg.ChunkPause,
			StartRegion:  startRegion,
			StartChunk:   c.String("start-chunk"),
			ShowProgress: !c.Bool("no-progress"),
			Logger:       log,
		},
	)
	m := merger.New(merger.Config{
		OutputDir: cfg.OutputDir,
		BBox:      cfg.BBox,
		Layers:    hazard.LayerIDs,
		BatchSize: cfg.BatchSize,
		Logger:    log,
	})
	orchestrator := pipeline.NewOrchestrator(cfg.Regions, processor, store, m, resumeCommand(os.Args), log)

	if listen := c.String("listen"); listen != "" {
		serverCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := server.Run(serverCtx, listen, store, st, len(cfg.Regions)); err != nil {
				log.Error("status server stopped", "error", err)
			}
		}()
	}

	log.Info("processing",
		"regions", len(cfg.Regions),
		"step", cfg.Step,
		"layers", len(layers.Layers()),
		"bbox_hash", cfg.BBox.Hash(),
	)
	return orchestrator.Run(ctx)
}

func counters(st *pipeline.Stats) map[string]int64 {
	out := map[string]int64{
		stats.ChunksProcessed:  st.ChunksProcessed.Value(),
		"chunks_skipped":       st.ChunksSkipped.Value(),
		stats.BuildingsFetched: st.BuildingsFetched.Value(),
	}
	for layer, n := range st.Matched() {
		out["matched_"+layer] = n
	}
	return out
}

func merge(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := setupTelemetry(ctx)
	defer shutdown()

	cfg, err := loadConfig(c, c.Args().Slice())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	summary, err := merger.New(merger.Config{
		OutputDir: cfg.OutputDir,
		BBox:      cfg.BBox,
		Layers:    hazard.LayerIDs,
		BatchSize: cfg.BatchSize,
		Logger:    slog.Default(),
	}).Merge(ctx)
	if err != nil {
		return interrupted(ctx, err)
	}

	fmt.Printf("Merge complete, run %s\n", summary.RunID)
	for _, layer := range hazard.LayerIDs {
		if n, ok := summary.Buildings[layer]; ok {
			fmt.Printf("  %-10s %s buildings\n", layer, humanize.Comma(int64(n)))
		}
	}
	fmt.Printf("Info file: %s\n", summary.InfoFile)
	return nil
}

func status(c *cli.Context) error {
	cfg, err := loadConfig(c, c.Args().Slice())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path := filepath.Join(cfg.OutputDir, progress.FileName)
	state, err := progress.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("No unfinished run in %s\n", cfg.OutputDir)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Print(formatStatus(state, cfg.Regions))
	return nil
}

func formatStatus(state progress.State, regions []grid.Region) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Started:          %s (%s)\n", state.Started().Format(time.DateTime), humanize.Time(state.Started()))
	fmt.Fprintf(&sb, "Regions done:     %d of %d\n", len(state.ProcessedRegionIndices), len(regions))
	if state.CurrentRegionIndex < len(regions) {
		fmt.Fprintf(&sb, "Current region:   %d %s\n", state.CurrentRegionIndex, regions[state.CurrentRegionIndex])
	} else {
		sb.WriteString("Current region:   all regions done, merge pending\n")
	}
	if state.CurrentChunk != "" {
		fmt.Fprintf(&sb, "Current chunk:    %s\n", state.CurrentChunk)
	}
	fmt.Fprintf(&sb, "Chunks completed: %s\n", humanize.Comma(int64(state.CompletedChunks())))
	return sb.String()
}
