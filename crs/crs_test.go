package crs_test

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/royalcat/floodgen/crs"
)

func TestCentralMeridian(t *testing.T) {
	p := crs.ToWorking(orb.Point{15, 60})
	if math.Abs(p[0]-500000) > 1e-6 {
		t.Fatalf("expected easting 500000, got %f", p[0])
	}
	if math.Abs(p[1]-6651411.19) > 0.01 {
		t.Fatalf("expected northing 6651411.19, got %f", p[1])
	}
}

func TestOslo(t *testing.T) {
	p := crs.ToWorking(orb.Point{10.75, 59.91})
	if math.Abs(p[0]-262409.732) > 0.01 || math.Abs(p[1]-6649017.749) > 0.01 {
		t.Fatalf("unexpected projection of Oslo: %v", p)
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add(10.75, 59.91)
	f.Add(5.32, 60.39)
	f.Add(31.0, 70.5)

	f.Fuzz(func(t *testing.T, lon, lat float64) {
		if lon < 3 || lon > 33 || lat < 55 || lat > 72 {
			t.Skip()
		}
		back := crs.ToPublic(crs.ToWorking(orb.Point{lon, lat}))
		if math.Abs(back[0]-lon) > 1e-8 || math.Abs(back[1]-lat) > 1e-8 {
			t.Fatalf("round trip of %v,%v gave %v", lon, lat, back)
		}
	})
}

func TestProjectKeepsInput(t *testing.T) {
	ring := orb.Ring{{10, 60}, {10.1, 60}, {10.1, 60.1}, {10, 60.1}, {10, 60}}
	poly := orb.Polygon{ring}

	out := crs.Project(poly, crs.ToWorking).(orb.Polygon)
	if poly[0][0] != (orb.Point{10, 60}) {
		t.Fatalf("input was modified: %v", poly[0][0])
	}
	if out[0][0][0] < 100000 {
		t.Fatalf("output was not projected: %v", out[0][0])
	}
}

func TestParse(t *testing.T) {
	cases := map[string]crs.Code{
		"":                              crs.Working,
		"urn:ogc:def:crs:EPSG::25833":   crs.Working,
		"EPSG:25833":                    crs.Working,
		"urn:ogc:def:crs:OGC:1.3:CRS84": crs.Public,
		"EPSG:4326":                     crs.Public,
	}
	for name, want := range cases {
		got, err := crs.Parse(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if got != want {
			t.Fatalf("%q: expected %s, got %s", name, want, got)
		}
	}

	if got, err := crs.Parse("urn:ogc:def:crs:EPSG::25832"); err != nil || got != 25832 {
		t.Fatalf("expected the neighbouring UTM zone to be known, got %v %v", got, err)
	}
	if _, err := crs.Parse("EPSG:2056"); err == nil {
		t.Fatalf("expected error for unsupported crs")
	}
	if _, err := crs.Parse("EPSG:abc"); err == nil {
		t.Fatalf("expected error for malformed code")
	}
}

const prjETRS89UTM33 = `PROJCS["ETRS_1989_UTM_Zone_33N",GEOGCS["GCS_ETRS_1989",DATUM["D_ETRS_1989",` +
	`SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],` +
	`PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",0.0],` +
	`PARAMETER["Central_Meridian",15.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`

const prjWGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],` +
	`PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

const prjWithAuthority = `PROJCS["ETRS89 / UTM zone 32N",GEOGCS["ETRS89",DATUM["European_Terrestrial_Reference_System_1989",` +
	`SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],AUTHORITY["EPSG","6258"]],` +
	`AUTHORITY["EPSG","4258"]],PROJECTION["Transverse_Mercator"],AUTHORITY["EPSG","25832"]]`

func TestParsePRJ(t *testing.T) {
	cases := map[string]crs.Code{
		"":               crs.Working,
		"  \n":           crs.Working,
		prjETRS89UTM33:   crs.Working,
		prjWGS84:         crs.Public,
		prjWithAuthority: 25832,
	}
	for wkt, want := range cases {
		got, err := crs.ParsePRJ(wkt)
		if err != nil {
			t.Fatalf("%.40q: %v", wkt, err)
		}
		if got != want {
			t.Fatalf("%.40q: expected %s, got %s", wkt, want, got)
		}
	}

	if _, err := crs.ParsePRJ(`PROJCS["CH1903+ / LV95",AUTHORITY["EPSG","2056"]]`); err == nil {
		t.Fatalf("expected error for unsupported crs")
	}
	if _, err := crs.ParsePRJ(`LOCAL_CS["engineering"]`); err == nil {
		t.Fatalf("expected error for unknown definition")
	}
}

func TestConverterBetweenRepositoryCodes(t *testing.T) {
	etrs89 := crs.Converter(4258, crs.Working)
	a := etrs89(orb.Point{10.75, 59.91})
	b := crs.ToWorking(orb.Point{10.75, 59.91})
	if math.Abs(a[0]-b[0]) > 0.01 || math.Abs(a[1]-b[1]) > 0.01 {
		t.Fatalf("ETRS89 and WGS84 lon/lat should project alike: %v vs %v", a, b)
	}

	if crs.Converter(crs.Working, crs.Working) != nil {
		t.Fatalf("expected no conversion within one system")
	}

	// Zone 32 is centred on 9E.
	p := crs.Converter(crs.Public, 25832)(orb.Point{9, 60})
	if math.Abs(p[0]-500000) > 1e-6 {
		t.Fatalf("expected easting 500000 in zone 32, got %f", p[0])
	}
}
