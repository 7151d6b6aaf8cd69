package merger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mailru/easyjson"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/floodgen/featurefile"
	"github.com/royalcat/floodgen/grid"
	"github.com/royalcat/floodgen/internal/fsutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

//go:generate go tool easyjson merger.go

const DefaultBatchSize = 20

const instrumentation = "github.com/royalcat/floodgen/merger"

var meter = otel.Meter(instrumentation)

type Config struct {
	OutputDir string
	// BBox is the overall configured area, its hash names the merged outputs.
	BBox      grid.Region
	Layers    []string
	BatchSize int
	Logger    *slog.Logger
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

// Summary is written next to the merged outputs.
//
//easyjson:json
type Summary struct {
	BBox           [4]float64     `json:"bbox"`
	BBoxHash       string         `json:"bbox_hash"`
	ProcessingDate string         `json:"processing_date"`
	RunID          string         `json:"run_id"`
	Buildings      map[string]int `json:"buildings"`

	InfoFile string `json:"-"`
}

// Merger folds per-chunk result files into one output per layer.
type Merger struct {
	dir       string
	bbox      grid.Region
	layers    []string
	batchSize int
	log       *slog.Logger
	tracer    trace.Tracer

	metricBatches metric.Int64Counter
}

func New(cfg Config) *Merger {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(instrumentation)
	}

	batches, err := meter.Int64Counter("merge_batches_total")
	if err != nil {
		cfg.Logger.Warn("error creating merge batches counter", "error", err)
	}

	return &Merger{
		dir:           cfg.OutputDir,
		bbox:          cfg.BBox,
		layers:        cfg.Layers,
		batchSize:     cfg.BatchSize,
		log:           cfg.Logger.With("component", "merger"),
		metricBatches: batches,
	}
}

// Merge is safe to run again after a partial run: an existing merged output
// is read back and extended, never replaced by a subset.
func (m *Merger) Merge(ctx context.Context) (Summary, error) {
	hash := m.bbox.Hash()
	summary := Summary{
		BBox:      [4]float64{m.bbox.South, m.bbox.West, m.bbox.North, m.bbox.East},
		BBoxHash:  hash,
		RunID:     uuid.NewString(),
		Buildings: map[string]int{},
	}

	m.log.Info("merging chunk results", "bbox_hash", hash, "run_id", summary.RunID)

	files, err := m.resultFiles()
	if err != nil {
		return summary, err
	}

	var errs []error
	for _, layer := range m.layers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		n, err := m.mergeLayer(ctx, layer, hash, files[layer])
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("layer %s: %w", layer, err))
		}
		if n > 0 {
			summary.Buildings[layer] = n
		}
	}

	summary.ProcessingDate = time.Now().Format("2006-01-02 15:04:05")
	summary.InfoFile = filepath.Join(m.dir, featurefile.InfoName(hash))
	data, err := easyjson.Marshal(summary)
	if err != nil {
		return summary, err
	}
	if err := fsutil.WriteBytesAtomic(summary.InfoFile, data); err != nil {
		errs = append(errs, fmt.Errorf("error writing info file: %w", err))
	} else {
		m.log.Info("saved info file", "file", filepath.Base(summary.InfoFile))
	}

	return summary, errors.Join(errs...)
}

// resultFiles groups the chunk result files in the output directory by layer.
func (m *Merger) resultFiles() (map[string][]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", m.dir, err)
	}

	files := map[string][]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rf, ok := featurefile.ParseResultName(e.Name())
		if !ok {
			continue
		}
		files[rf.Layer] = append(files[rf.Layer], filepath.Join(m.dir, e.Name()))
	}
	for _, f := range files {
		slices.Sort(f)
	}
	return files, nil
}

func (m *Merger) mergeLayer(ctx context.Context, layer, hash string, files []string) (int, error) {
	log := m.log.With("layer", layer)
	if len(files) == 0 {
		log.Info("no chunk files found")
		return 0, nil
	}

	output := filepath.Join(m.dir, featurefile.MergedName(layer, hash))
	batches := (len(files) + m.batchSize - 1) / m.batchSize
	log.Info("merging chunk files", "files", len(files), "batches", batches)

	var (
		total int
		errs  []error
	)
	for b := range batches {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch := files[b*m.batchSize : min((b+1)*m.batchSize, len(files))]
		n, err := m.mergeBatch(ctx, layer, hash, output, b+1, batches, batch, log)
		if err != nil {
			errs = append(errs, fmt.Errorf("batch %d: %w", b+1, err))
			continue
		}
		total = n
	}

	if stat, err := os.Stat(output); err == nil {
		log.Info("saved buildings", "count", total, "file", filepath.Base(output), "size", humanize.Bytes(uint64(stat.Size())))
	}
	return total, errors.Join(errs...)
}

// mergeBatch folds one batch of chunk files into output and returns the
// number of features output holds afterwards. When output cannot be
// rewritten the batch is saved to a numbered fallback file instead.
func (m *Merger) mergeBatch(ctx context.Context, layer, hash, output string, num, batches int, batch []string, log *slog.Logger) (n int, err error) {
	ctx, span := m.tracer.Start(ctx, "merge_batch", trace.WithAttributes(
		attribute.String("layer", layer),
		attribute.Int("batch", num),
		attribute.Int("files", len(batch)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log.Info("processing batch", "batch", num, "batches", batches, "files", len(batch))

	features, readable := m.readBatch(batch, log)
	before := len(features)
	features = Dedup(features)
	if dropped := before - len(features); dropped > 0 {
		log.Info("removed duplicates", "batch", num, "count", dropped)
	}
	span.SetAttributes(attribute.Int("features", len(features)))

	n, err = m.commit(output, features)
	if err != nil {
		fallback := filepath.Join(m.dir, featurefile.FallbackName(layer, num, hash))
		log.Error("error merging with existing output, writing batch file, manual merge required",
			"batch", num, "file", filepath.Base(fallback), "error", err)

		fc := geojson.NewFeatureCollection()
		fc.Features = features
		if ferr := featurefile.Save(fallback, fc); ferr != nil {
			log.Error("error writing batch file", "file", filepath.Base(fallback), "error", ferr)
			err = errors.Join(err, ferr)
		}
		m.countBatch(ctx, layer, "fallback")
		return 0, err
	}
	m.countBatch(ctx, layer, "merged")

	for _, f := range readable {
		if err := os.Remove(f); err != nil {
			log.Warn("could not delete chunk file", "file", filepath.Base(f), "error", err)
		}
	}
	clear(features)
	return n, nil
}

// readBatch returns the features of every readable file and the list of
// files that were read. Unreadable files stay on disk.
func (m *Merger) readBatch(batch []string, log *slog.Logger) ([]*geojson.Feature, []string) {
	var (
		features []*geojson.Feature
		readable = make([]string, 0, len(batch))
	)
	for _, f := range batch {
		fc, err := featurefile.Load(f)
		if err != nil {
			log.Error("error reading chunk file", "file", filepath.Base(f), "error", err)
			continue
		}
		log.Debug("read chunk file", "file", filepath.Base(f), "count", len(fc.Features))
		features = append(features, fc.Features...)
		readable = append(readable, f)
	}
	return features, readable
}

// commit folds features into the merged output and returns its new size.
func (m *Merger) commit(output string, features []*geojson.Feature) (int, error) {
	_, err := os.Stat(output)
	switch {
	case err == nil:
		existing, err := featurefile.Load(output)
		if err != nil {
			return 0, fmt.Errorf("error reading merged output: %w", err)
		}
		features = append(existing.Features, features...)
	case errors.Is(err, fs.ErrNotExist):
		if len(features) == 0 {
			return 0, nil
		}
	default:
		return 0, err
	}

	fc := geojson.NewFeatureCollection()
	fc.Features = Dedup(features)
	if err := featurefile.Save(output, fc); err != nil {
		return 0, err
	}
	return len(fc.Features), nil
}

func (m *Merger) countBatch(ctx context.Context, layer, outcome string) {
	if m.metricBatches == nil {
		return
	}
	m.metricBatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("layer", layer),
		attribute.String("outcome", outcome),
	))
}
