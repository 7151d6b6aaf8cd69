package hazard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/floodgen/crs"
	"github.com/royalcat/floodgen/featurefile"
	"github.com/sourcegraph/conc/pool"
)

// LayerIDs lists the hazard layers in processing order.
var LayerIDs = []string{"10", "20", "50", "100", "200", "500", "1000", "aktsomhet"}

// DefaultSources maps layer ids to their source files. Sources ending in
// .shp are read as shapefiles, anything else as GeoJSON.
func DefaultSources() map[string]string {
	return map[string]string{
		"10":        "Flomsone_10Aar.shp",
		"20":        "Flomsone_20Aar.shp",
		"50":        "Flomsone_50Aar.shp",
		"100":       "Flomsone_100Aar.shp",
		"200":       "Flomsone_200Aar.shp",
		"500":       "Flomsone_500Aar.shp",
		"1000":      "Flomsone_1000Aar.shp",
		"aktsomhet": "Flom_AktsomhetOmr.shp",
	}
}

// Store holds the loaded layers in LayerIDs order. Layers whose source is
// missing or unreadable are absent.
type Store struct {
	layers []*Layer
}

func NewStore(layers ...*Layer) *Store {
	return &Store{layers: layers}
}

func (s *Store) Layers() []*Layer {
	return s.layers
}

func (s *Store) Get(id string) (*Layer, bool) {
	for _, l := range s.layers {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// Load reads every configured source in dir. Missing or broken sources are logged
// and skipped, so Load only fails when ctx is cancelled.
func Load(ctx context.Context, dir string, sources map[string]string, threads int, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "hazard")

	loaded := make([]*Layer, len(LayerIDs))

	p := pool.New().WithMaxGoroutines(max(threads, 1))
	for i, id := range LayerIDs {
		name, ok := sources[id]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)

		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			log := log.With("layer", id, "file", path)

			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				log.Warn("hazard source does not exist, layer skipped")
				return
			}

			log.Info("loading hazard source")
			layer, err := LoadLayer(id, path, log)
			if err != nil {
				log.Error("error loading hazard source, layer skipped", "error", err)
				return
			}
			log.Info("hazard layer loaded", "polygons", layer.Len())
			loaded[i] = layer
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Store{}
	for _, l := range loaded {
		if l != nil {
			s.layers = append(s.layers, l)
		}
	}
	return s, nil
}

func LoadLayer(id, path string, log *slog.Logger) (*Layer, error) {
	if isShapefile(path) {
		geoms, src, described, err := readShapefile(path)
		if err != nil {
			return nil, err
		}
		return buildLayer(id, geoms, src, described, log)
	}

	fc, err := featurefile.Load(path)
	if err != nil {
		return nil, err
	}
	return layerFromCollection(id, fc, log)
}

func layerFromCollection(id string, fc *geojson.FeatureCollection, log *slog.Logger) (*Layer, error) {
	name := crsName(fc)
	src, err := crs.Parse(name)
	if err != nil {
		return nil, err
	}

	geoms := make([]orb.Geometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		geoms = append(geoms, f.Geometry)
	}
	return buildLayer(id, geoms, src, name != "", log)
}

// buildLayer projects geoms from src into the working system and indexes them.
// Zones GEOS cannot read are logged and skipped.
func buildLayer(id string, geoms []orb.Geometry, src crs.Code, described bool, log *slog.Logger) (*Layer, error) {
	if !described {
		log.Info("hazard source has no coordinate system, assuming working projection", "crs", crs.Working)
	}

	proj := crs.Converter(src, crs.Working)
	if proj != nil {
		log.Info("reprojecting hazard source", "from", src, "to", crs.Working)
	}

	layer := NewLayer(id)
	for i, g := range geoms {
		if proj != nil {
			g = crs.ProjectInPlace(g, proj)
		}
		if err := layer.InsertGeometry(g); err != nil {
			log.Warn("hazard zone skipped", "feature", i, "error", err)
		}
	}
	if layer.Len() == 0 {
		return nil, fmt.Errorf("no polygons in layer %s", id)
	}
	return layer, nil
}

// crsName extracts properties.name of the legacy GeoJSON "crs" member.
func crsName(fc *geojson.FeatureCollection) string {
	member, ok := fc.ExtraMembers["crs"].(map[string]interface{})
	if !ok {
		return ""
	}
	props, ok := member["properties"].(map[string]interface{})
	if !ok {
		return ""
	}
	name, _ := props["name"].(string)
	return name
}
