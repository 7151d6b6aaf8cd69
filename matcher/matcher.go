package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
	"github.com/royalcat/floodgen/crs"
	"github.com/royalcat/floodgen/featurefile"
	"github.com/royalcat/floodgen/geomodel"
	"github.com/royalcat/floodgen/hazard"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const DefaultTolerance = 0.5

var meter = otel.Meter("github.com/royalcat/floodgen/matcher")

// Matcher intersects the buildings of one chunk with every hazard layer and
// persists one result file per layer with at least one hit.
type Matcher struct {
	outputDir string
	tolerance float64
	log       *slog.Logger

	metricMatched metric.Int64Counter
}

func New(outputDir string, tolerance float64, log *slog.Logger) *Matcher {
	if log == nil {
		log = slog.Default()
	}
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}

	matched, err := meter.Int64Counter("matched_buildings_total")
	if err != nil {
		log.Warn("error creating matched buildings counter", "error", err)
	}

	return &Matcher{
		outputDir:     outputDir,
		tolerance:     tolerance,
		log:           log.With("component", "matcher"),
		metricMatched: matched,
	}
}

// Match expects buildings in the working crs. It returns the number of
// buildings written per layer; layers without hits are absent from the map.
// A non-nil error means at least one layer file that should exist was not
// written.
func (m *Matcher) Match(ctx context.Context, buildings []geomodel.Building, layers []*hazard.Layer, regionHash, chunkID string) (map[string]int, error) {
	counts := make(map[string]int, len(layers))
	var errs []error

	for _, layer := range layers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("layer %s: %w", layer.ID, err))
			continue
		}

		path := filepath.Join(m.outputDir, featurefile.ResultName(chunkID, layer.ID, regionHash))
		n, err := m.matchLayer(buildings, layer, path)
		if err != nil {
			m.log.Error("error processing layer", "layer", layer.ID, "chunk", chunkID, "error", err)
			errs = append(errs, fmt.Errorf("layer %s: %w", layer.ID, err))
			continue
		}
		if n == 0 {
			continue
		}

		counts[layer.ID] = n
		m.log.Info("saved buildings in flood zone", "layer", layer.ID, "chunk", chunkID, "count", n)
		if m.metricMatched != nil {
			m.metricMatched.Add(ctx, int64(n), metric.WithAttributes(attribute.String("layer", layer.ID)))
		}
	}

	return counts, errors.Join(errs...)
}

func (m *Matcher) matchLayer(buildings []geomodel.Building, layer *hazard.Layer, path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while matching: %v", r)
		}
	}()

	var features []*geojson.Feature
	for _, b := range buildings {
		hit, err := layer.Intersects(b.Geometry)
		if err != nil {
			m.log.Warn("building geometry skipped", "layer", layer.ID, "building", b.ID, "error", err)
			continue
		}
		if !hit {
			continue
		}
		features = append(features, featurefile.NewFeature(geomodel.Building{
			ID:       b.ID,
			Geometry: m.publicGeometry(b.Geometry),
		}))
	}
	if len(features) == 0 {
		return 0, nil
	}

	features = featurefile.Dedup(features)
	fc := geojson.NewFeatureCollection()
	fc.Features = features

	if err := featurefile.Save(path, fc); err != nil {
		return 0, err
	}

	n = len(features)
	clear(features)
	return n, nil
}

// publicGeometry simplifies a copy of g in the working crs and returns it in
// lon/lat.
func (m *Matcher) publicGeometry(g orb.Geometry) orb.Geometry {
	out := orb.Clone(g)
	if m.tolerance > 0 {
		if s := simplify.DouglasPeucker(m.tolerance).Simplify(out); s != nil {
			out = s
		} else {
			out = orb.Clone(g)
		}
	}
	return crs.ProjectInPlace(out, crs.ToPublic)
}
