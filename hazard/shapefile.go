package hazard

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/royalcat/floodgen/crs"
)

func isShapefile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".shp")
}

// readShapefile returns the polygons of an ESRI shapefile and the coordinate
// system declared by its .prj sidecar. described is false when there is no
// sidecar.
func readShapefile(path string) (geoms []orb.Geometry, src crs.Code, described bool, err error) {
	prj, err := os.ReadFile(strings.TrimSuffix(path, filepath.Ext(path)) + ".prj")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, 0, false, err
	}
	described = strings.TrimSpace(string(prj)) != ""
	src, err = crs.ParsePRJ(string(prj))
	if err != nil {
		return nil, 0, false, err
	}

	r, err := shp.Open(path)
	if err != nil {
		return nil, 0, false, err
	}
	defer r.Close()

	for r.Next() {
		_, shape := r.Shape()
		if mp := shapePolygons(shape); len(mp) > 0 {
			geoms = append(geoms, mp)
		}
	}
	if err := r.Err(); err != nil {
		return nil, 0, false, err
	}
	return geoms, src, described, nil
}

func shapePolygons(shape shp.Shape) orb.MultiPolygon {
	switch s := shape.(type) {
	case *shp.Polygon:
		return ringsToPolygons(s.Parts, s.Points)
	case *shp.PolygonZ:
		return ringsToPolygons(s.Parts, s.Points)
	case *shp.PolygonM:
		return ringsToPolygons(s.Parts, s.Points)
	}
	return nil
}

// ringsToPolygons groups shapefile parts into polygons. Outer rings run
// clockwise and are followed by their counter-clockwise holes.
func ringsToPolygons(parts []int32, points []shp.Point) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if int(start) >= end || end > len(points) {
			continue
		}

		ring := make(orb.Ring, 0, end-int(start))
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}

		if len(mp) == 0 || ring.Orientation() == orb.CW {
			mp = append(mp, orb.Polygon{ring})
		} else {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
		}
	}
	return mp
}
