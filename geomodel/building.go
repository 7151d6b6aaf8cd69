package geomodel

import (
	"github.com/paulmach/orb"
)

// Building is a footprint returned by the feature provider for one chunk.
type Building struct {
	ID       string
	Kind     string
	Geometry orb.Geometry
}

// IDProperty is the property name that carries the building id in result files.
const IDProperty = "osm_id"
