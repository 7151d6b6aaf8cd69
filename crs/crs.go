// Package crs converts geometries between the public geographic system (EPSG:4326)
// and the projected system the pipeline works in (EPSG:25833, ETRS89 / UTM 33N).
// Any other system of the EPSG repository is accepted as a source.
package crs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"
)

// Code is an EPSG code.
type Code int

const (
	Public  Code = 4326
	Working Code = 25833
)

func (c Code) String() string {
	return "EPSG:" + strconv.Itoa(int(c))
}

// WorkingExtent bounds the area of use of the working system in metres.
var WorkingExtent = orb.Bound{
	Min: orb.Point{-2500000, 3500000},
	Max: orb.Point{1500000, 9500000},
}

var registry = newRegistry()

// newRegistry is the EPSG repository with the ETRS89 UTM zones backed by
// the Krüger series projection.
func newRegistry() *wgs84.Repository {
	r := wgs84.EPSG()
	for zone := 28; zone <= 38; zone++ {
		r.Add(25800+zone, etrs89UTM(zone))
	}
	return r
}

var (
	// ToWorking projects a lon/lat point to EPSG:25833 easting/northing.
	ToWorking = Converter(Public, Working)
	// ToPublic projects an EPSG:25833 point back to lon/lat.
	ToPublic = Converter(Working, Public)
)

// Project reprojects a copy of g, the input is never modified.
func Project(g orb.Geometry, proj orb.Projection) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), proj)
}

// ProjectInPlace reprojects g reusing its coordinate slices.
func ProjectInPlace(g orb.Geometry, proj orb.Projection) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(g, proj)
}

// Converter returns the projection taking coordinates from src to dst, nil when
// no conversion is needed.
func Converter(src, dst Code) orb.Projection {
	if src == dst {
		return nil
	}
	transform := registry.Transform(int(src), int(dst))
	return func(p orb.Point) orb.Point {
		x, y, _ := transform(p[0], p[1], 0)
		return orb.Point{x, y}
	}
}

func known(c Code) bool {
	return registry.Code(int(c)) != nil
}

// Parse recognizes the crs names found in GeoJSON "crs" members.
// An empty name means no metadata, which is treated as the working system.
func Parse(name string) (Code, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return Working, nil
	}
	if strings.HasSuffix(n, "CRS84") {
		return Public, nil
	}
	if i := strings.LastIndex(n, "EPSG"); i >= 0 {
		c, err := strconv.Atoi(strings.TrimLeft(n[i+len("EPSG"):], ":"))
		if err == nil && known(Code(c)) {
			return Code(c), nil
		}
	}
	return 0, fmt.Errorf("unsupported coordinate system %q", name)
}

var (
	prjAuthority = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"?(\d+)"?\]`)
	prjUTM       = regexp.MustCompile(`(?i)UTM[ _]ZONE[ _](\d{1,2})N`)
)

// ParsePRJ reads the WKT of a shapefile .prj sidecar. Empty content means no
// metadata, which is treated as the working system.
func ParsePRJ(wkt string) (Code, error) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return Working, nil
	}

	// The outermost AUTHORITY closes the definition.
	if all := prjAuthority.FindAllStringSubmatch(wkt, -1); len(all) > 0 {
		c, _ := strconv.Atoi(all[len(all)-1][1])
		if known(Code(c)) {
			return Code(c), nil
		}
		return 0, fmt.Errorf("unsupported coordinate system EPSG:%d", c)
	}

	// ESRI flavoured WKT carries names only.
	upper := strings.ToUpper(wkt)
	etrs := strings.Contains(upper, "ETRS") || strings.Contains(upper, "EUREF")
	if m := prjUTM.FindStringSubmatch(wkt); m != nil {
		zone, _ := strconv.Atoi(m[1])
		c := Code(32600 + zone)
		if etrs {
			c = Code(25800 + zone)
		}
		if known(c) {
			return c, nil
		}
		return 0, fmt.Errorf("unsupported coordinate system %s", c)
	}
	if strings.HasPrefix(upper, "GEOGCS") {
		if etrs {
			return Code(4258), nil
		}
		if strings.Contains(upper, "WGS_1984") || strings.Contains(upper, "WGS 84") {
			return Public, nil
		}
	}

	name := wkt
	if len(name) > 60 {
		name = name[:60] + "..."
	}
	return 0, fmt.Errorf("unsupported coordinate system %q", name)
}
