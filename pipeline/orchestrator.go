package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/royalcat/floodgen/grid"
	"github.com/royalcat/floodgen/merger"
	"github.com/royalcat/floodgen/progress"
)

// ErrInterrupted reports a user requested stop. Progress is saved.
var ErrInterrupted = errors.New("processing interrupted")

type Merger interface {
	Merge(ctx context.Context) (merger.Summary, error)
}

type Orchestrator struct {
	regions    []grid.Region
	processor  *RegionProcessor
	progress   *progress.Store
	merger     Merger
	resumeHint string
	log        *slog.Logger
}

// NewOrchestrator wires the run. resumeHint is the command suggested to the
// operator after an abnormal stop.
func NewOrchestrator(regions []grid.Region, processor *RegionProcessor, store *progress.Store, m Merger, resumeHint string, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		regions:    regions,
		processor:  processor,
		progress:   store,
		merger:     m,
		resumeHint: resumeHint,
		log:        log.With("component", "orchestrator"),
	}
}

// Run processes the remaining regions, merges the chunk results and removes
// the progress file. Progress survives every failure path.
func (o *Orchestrator) Run(ctx context.Context) error {
	start := o.progress.CurrentRegion()
	if start > 0 {
		o.log.Info("resuming", "region", start+1, "regions", len(o.regions))
	}

	for i := start; i < len(o.regions); i++ {
		if err := o.processRegion(ctx, i); err != nil {
			if errors.Is(err, ErrInterrupted) || ctx.Err() != nil {
				o.log.Warn("processing interrupted, progress is saved", "region", i+1)
				o.log.Info("resume later with", "command", o.resumeHint)
				return ErrInterrupted
			}
			o.log.Error("error during processing, progress is saved", "region", i+1, "error", err)
			o.log.Info("resume later with", "command", o.resumeHint)
			return fmt.Errorf("region %d: %w", i, err)
		}

		if err := o.progress.CompleteRegion(i); err != nil {
			return err
		}
	}

	summary, err := o.merger.Merge(ctx)
	if err != nil {
		if ctx.Err() != nil {
			o.log.Warn("merge interrupted, progress is saved")
			return ErrInterrupted
		}
		return fmt.Errorf("merge failed: %w", err)
	}
	o.log.Info("merge complete", "run_id", summary.RunID, "info_file", summary.InfoFile)

	if err := o.progress.Delete(); err != nil {
		return fmt.Errorf("error removing progress file: %w", err)
	}
	return nil
}

func (o *Orchestrator) processRegion(ctx context.Context, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	_, err = o.processor.Process(ctx, o.regions[i], i)
	return err
}
