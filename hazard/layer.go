package hazard

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/royalcat/floodgen/crs"
	"github.com/tidwall/qtree"
	"github.com/twpayne/go-geos"
)

// Layer is one hazard category with its zones in the working projection.
// It is built once and read-only afterwards; Intersects is safe for
// concurrent use.
type Layer struct {
	ID string

	geos  *geos.Context
	zones []*geos.PrepGeom
	qt    *qtree.QTree
}

func NewLayer(id string) *Layer {
	return &Layer{
		ID:   id,
		geos: geos.NewContext(),
		qt:   qtree.New(crs.WorkingExtent.Min, crs.WorkingExtent.Max),
	}
}

// geometry converts g into the layer's GEOS context, repairing invalid input.
func (l *Layer) geometry(g orb.Geometry) (*geos.Geom, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, err
	}
	gg, err := l.geos.NewGeomFromWKB(data)
	if err != nil {
		return nil, err
	}
	if !gg.IsValid() {
		gg = gg.MakeValid()
	}
	return gg, nil
}

// Insert adds one zone polygon.
func (l *Layer) Insert(poly orb.Polygon) error {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return nil
	}
	zone, err := l.geometry(poly)
	if err != nil {
		return fmt.Errorf("zone %d: %w", len(l.zones), err)
	}
	bound := poly.Bound()
	l.qt.Insert(bound.Min, bound.Max, len(l.zones))
	l.zones = append(l.zones, zone.Prepare())
	return nil
}

// InsertGeometry adds every polygon of g. Other geometry types carry no area
// and are ignored. A polygon that cannot be read does not stop the others.
func (l *Layer) InsertGeometry(g orb.Geometry) error {
	var errs []error
	switch g := g.(type) {
	case orb.Polygon:
		errs = append(errs, l.Insert(g))
	case orb.MultiPolygon:
		for _, p := range g {
			errs = append(errs, l.Insert(p))
		}
	case orb.Bound:
		errs = append(errs, l.Insert(g.ToPolygon()))
	case orb.Collection:
		for _, c := range g {
			errs = append(errs, l.InsertGeometry(c))
		}
	}
	return errors.Join(errs...)
}

func (l *Layer) Len() int {
	return len(l.zones)
}

// Intersects reports whether g shares at least one point with a zone of the
// layer. Zones are prefiltered by bounds so g is only converted when a
// candidate exists.
func (l *Layer) Intersects(g orb.Geometry) (bool, error) {
	if g == nil {
		return false, nil
	}
	bound := g.Bound()

	var candidates []int
	l.qt.Search(bound.Min, bound.Max, func(_, _ [2]float64, data interface{}) bool {
		candidates = append(candidates, data.(int))
		return true
	})
	if len(candidates) == 0 {
		return false, nil
	}

	gg, err := l.geometry(g)
	if err != nil {
		return false, fmt.Errorf("layer %s: %w", l.ID, err)
	}
	for _, i := range candidates {
		if l.zones[i].Intersects(gg) {
			return true, nil
		}
	}
	return false, nil
}
