package featurefile

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/floodgen/geomodel"
	"github.com/royalcat/floodgen/internal/fsutil"
	"golang.org/x/exp/mmap"
)

func compressed(name string) bool {
	return strings.HasSuffix(name, ".zst")
}

// Save writes fc atomically, zstd compressed when path ends with .zst.
func Save(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("error marshalling feature collection: %w", err)
	}

	return fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		if !compressed(path) {
			_, err := w.Write(data)
			return err
		}

		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("can`t create zstd writer: %w", err)
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	})
}

// Load reads a feature collection through a memory map.
func Load(path string) (*geojson.FeatureCollection, error) {
	file, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can`t open file error: %w", err)
	}
	defer file.Close()

	return Decode(io.NewSectionReader(file, 0, int64(file.Len())), compressed(path))
}

func Decode(r io.Reader, isCompressed bool) (*geojson.FeatureCollection, error) {
	if isCompressed {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("can`t create zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("error reading features: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("error decoding features: %w", err)
	}
	return fc, nil
}

// FeatureID returns the building id of a result feature, or "" when it has none.
func FeatureID(f *geojson.Feature) string {
	if v, ok := f.Properties[geomodel.IDProperty]; ok {
		if id := idString(v); id != "" {
			return id
		}
	}
	return idString(f.ID)
}

func idString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// NewFeature builds a result feature carrying only the id and the geometry.
func NewFeature(b geomodel.Building) *geojson.Feature {
	f := geojson.NewFeature(b.Geometry)
	f.ID = b.ID
	f.Properties[geomodel.IDProperty] = b.ID
	return f
}

// Dedup drops features whose id was already seen, keeping the first occurrence.
// Features without an id are kept.
func Dedup(features []*geojson.Feature) []*geojson.Feature {
	seen := make(map[string]struct{}, len(features))
	out := features[:0]
	for _, f := range features {
		id := FeatureID(f)
		if id != "" {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, f)
	}
	clear(features[len(out):])
	return out
}
