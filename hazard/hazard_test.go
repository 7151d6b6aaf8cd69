package hazard_test

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogleman/poissondisc"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/royalcat/floodgen/crs"
	"github.com/royalcat/floodgen/hazard"
)

func polygonFromBounds(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		orb.Point{minX, minY},
		orb.Point{maxX, minY},
		orb.Point{maxX, maxY},
		orb.Point{minX, maxY},
		orb.Point{minX, minY},
	}}
}

func layerOf(t testing.TB, zones ...orb.Polygon) *hazard.Layer {
	t.Helper()
	l := hazard.NewLayer("100")
	for _, z := range zones {
		if err := l.Insert(z); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func intersects(t *testing.T, l *hazard.Layer, g orb.Geometry) bool {
	t.Helper()
	hit, err := l.Intersects(g)
	if err != nil {
		t.Fatal(err)
	}
	return hit
}

func TestLayerIntersects(t *testing.T) {
	l := layerOf(t,
		polygonFromBounds(500000, 6650000, 501000, 6651000),
		polygonFromBounds(600000, 6700000, 601000, 6701000),
	)
	if l.Len() != 2 {
		t.Fatalf("expected 2 zones, got %d", l.Len())
	}

	inside := polygonFromBounds(500100, 6650100, 500200, 6650200)
	if !intersects(t, l, inside) {
		t.Fatalf("expected building inside zone to intersect")
	}

	overlapping := polygonFromBounds(500900, 6650900, 501100, 6651100)
	if !intersects(t, l, overlapping) {
		t.Fatalf("expected overlapping building to intersect")
	}

	covering := polygonFromBounds(599000, 6699000, 602000, 6702000)
	if !intersects(t, l, covering) {
		t.Fatalf("expected building covering zone to intersect")
	}

	outside := polygonFromBounds(502000, 6652000, 502100, 6652100)
	if intersects(t, l, outside) {
		t.Fatalf("expected building outside zone not to intersect")
	}

	if !intersects(t, l, orb.Point{500500, 6650500}) {
		t.Fatalf("expected point building to intersect")
	}

	if intersects(t, l, nil) {
		t.Fatalf("expected nil geometry not to intersect")
	}
}

func TestCrossingWithoutVertices(t *testing.T) {
	// A cross shape: neither polygon has a vertex inside the other.
	l := layerOf(t, polygonFromBounds(0, 10, 100, 20))
	if !intersects(t, l, polygonFromBounds(40, 0, 60, 30)) {
		t.Fatalf("expected crossing polygons to intersect")
	}
}

func TestBuildingInHole(t *testing.T) {
	l := layerOf(t, orb.Polygon{
		polygonFromBounds(0, 0, 100, 100)[0],
		polygonFromBounds(20, 20, 80, 80)[0],
	})
	if intersects(t, l, polygonFromBounds(40, 40, 60, 60)) {
		t.Fatalf("expected building inside hole not to intersect")
	}
	if !intersects(t, l, polygonFromBounds(10, 40, 30, 60)) {
		t.Fatalf("expected building across hole edge to intersect")
	}
}

func TestLineStringBuilding(t *testing.T) {
	l := layerOf(t, polygonFromBounds(0, 0, 10, 10))
	if !intersects(t, l, orb.LineString{{-5, 5}, {15, 5}}) {
		t.Fatalf("expected line through zone to intersect")
	}
	if intersects(t, l, orb.LineString{{-5, 15}, {15, 15}}) {
		t.Fatalf("expected line above zone not to intersect")
	}
}

func TestTouchingCorner(t *testing.T) {
	l := layerOf(t, polygonFromBounds(0, 0, 10, 10))
	if !intersects(t, l, polygonFromBounds(10, 10, 20, 20)) {
		t.Fatalf("expected polygons sharing a corner to intersect")
	}
}

func TestSelfIntersectingZoneIsRepaired(t *testing.T) {
	bowtie := orb.Polygon{orb.Ring{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}}
	l := layerOf(t, bowtie)

	if !intersects(t, l, polygonFromBounds(0.5, 4.5, 1.5, 5.5)) {
		t.Fatalf("expected building in left lobe to intersect")
	}
	if intersects(t, l, polygonFromBounds(4.5, 0.5, 5.5, 1.5)) {
		t.Fatalf("expected building between lobes not to intersect")
	}
}

func FuzzRectangles(f *testing.F) {
	f.Add(0.0, 0.0, 1.0, 1.0, 0.5, 0.5, 2.0, 2.0)
	f.Add(0.0, 0.0, 1.0, 1.0, 1.5, 1.5, 2.0, 2.0)
	f.Add(0.0, 0.0, 10.0, 1.0, 4.0, -1.0, 5.0, 2.0)

	f.Fuzz(func(t *testing.T, aMinX, aMinY, aMaxX, aMaxY, bMinX, bMinY, bMaxX, bMaxY float64) {
		if !(aMinX < aMaxX && aMinY < aMaxY && bMinX < bMaxX && bMinY < bMaxY) {
			t.Skip()
		}
		for _, v := range []float64{aMinX, aMinY, aMaxX, aMaxY, bMinX, bMinY, bMaxX, bMaxY} {
			if v < -1e6 || v > 1e6 {
				t.Skip()
			}
		}

		a := polygonFromBounds(aMinX, aMinY, aMaxX, aMaxY)
		b := polygonFromBounds(bMinX, bMinY, bMaxX, bMaxY)
		expect := a.Bound().Intersects(b.Bound())

		if got := intersects(t, layerOf(t, b), a); got != expect {
			t.Fatalf("expected %v, got %v", expect, got)
		}
	})
}

// BenchmarkLayerIntersects tests evenly spread building footprints against
// a layer of evenly spread zones.
func BenchmarkLayerIntersects(b *testing.B) {
	area := orb.Bound{Min: orb.Point{250000, 6640000}, Max: orb.Point{270000, 6660000}}
	rnd := rand.New(rand.NewSource(1))

	l := hazard.NewLayer("100")
	for _, p := range poissondisc.Sample(area.Min.X(), area.Min.Y(), area.Max.X(), area.Max.Y(), 400, 10, rnd) {
		if err := l.Insert(polygonFromBounds(p.X-150, p.Y-150, p.X+150, p.Y+150)); err != nil {
			b.Fatal(err)
		}
	}

	var buildings []orb.Polygon
	for _, p := range poissondisc.Sample(area.Min.X(), area.Min.Y(), area.Max.X(), area.Max.Y(), 50, 10, rnd) {
		buildings = append(buildings, polygonFromBounds(p.X-8, p.Y-8, p.X+8, p.Y+8))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := l.Intersects(buildings[i%len(buildings)]); err != nil {
			b.Fatal(err)
		}
	}
}

const layerWGS84 = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:OGC:1.3:CRS84"}},
  "features": [
    {"type": "Feature", "properties": {}, "geometry": {"type": "Polygon",
      "coordinates": [[[10.70, 59.90], [10.80, 59.90], [10.80, 59.95], [10.70, 59.95], [10.70, 59.90]]]}}
  ]
}`

const layerWorking = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {}, "geometry": {"type": "MultiPolygon",
      "coordinates": [[[[262000, 6648000], [263000, 6648000], [263000, 6650000], [262000, 6650000], [262000, 6648000]]]]}}
  ]
}`

// Oslo, 10.75E 59.91N, in the working projection.
var oslo = orb.Point{262409.73, 6649017.75}

func TestLoadStore(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{
		"10":        "Flomsone_10Aar.geojson",
		"100":       "Flomsone_100Aar.geojson",
		"aktsomhet": "Flom_AktsomhetOmr.geojson",
	}

	if err := os.WriteFile(filepath.Join(dir, sources["100"]), []byte(layerWGS84), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, sources["aktsomhet"]), []byte(layerWorking), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, sources["10"]), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := hazard.Load(context.Background(), dir, sources, 4, nil)
	if err != nil {
		t.Fatal(err)
	}

	layers := store.Layers()
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers))
	}
	if layers[0].ID != "100" || layers[1].ID != "aktsomhet" {
		t.Fatalf("unexpected layer order %s, %s", layers[0].ID, layers[1].ID)
	}

	for _, l := range layers {
		if !intersects(t, l, oslo) {
			t.Fatalf("layer %s: expected Oslo to intersect", l.ID)
		}
	}

	if _, ok := store.Get("20"); ok {
		t.Fatalf("expected missing layer 20 to be absent")
	}
}

const prjWGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// writeShapefile writes polygons given as rings, outer rings clockwise and
// holes counter-clockwise.
func writeShapefile(t *testing.T, path string, polygons ...[][]shp.Point) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		t.Fatal(err)
	}
	for _, rings := range polygons {
		w.Write((*shp.Polygon)(shp.NewPolyLine(rings)))
	}
	w.Close()
}

func clockwise(minX, minY, maxX, maxY float64) []shp.Point {
	return []shp.Point{{X: minX, Y: minY}, {X: minX, Y: maxY}, {X: maxX, Y: maxY}, {X: maxX, Y: minY}, {X: minX, Y: minY}}
}

func counterClockwise(minX, minY, maxX, maxY float64) []shp.Point {
	return []shp.Point{{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY}}
}

func TestLoadShapefile(t *testing.T) {
	dir := t.TempDir()
	sources := hazard.DefaultSources()

	// Geographic zone with Oslo in its hole, projection from the .prj sidecar.
	writeShapefile(t, filepath.Join(dir, sources["50"]),
		[][]shp.Point{
			clockwise(10.70, 59.90, 10.80, 59.95),
			counterClockwise(10.74, 59.905, 10.76, 59.915),
		},
		[][]shp.Point{clockwise(5.30, 60.35, 5.35, 60.40)},
	)
	if err := os.WriteFile(filepath.Join(dir, "Flomsone_50Aar.prj"), []byte(prjWGS84), 0644); err != nil {
		t.Fatal(err)
	}

	// No sidecar: coordinates are already in the working projection.
	writeShapefile(t, filepath.Join(dir, sources["aktsomhet"]),
		[][]shp.Point{clockwise(262000, 6648000, 263000, 6650000)},
	)

	// Unknown coordinate system: the layer is skipped.
	writeShapefile(t, filepath.Join(dir, sources["200"]),
		[][]shp.Point{clockwise(0, 0, 1, 1)},
	)
	if err := os.WriteFile(filepath.Join(dir, "Flomsone_200Aar.prj"), []byte(`PROJCS["Mars_2000"]`), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := hazard.Load(context.Background(), dir, sources, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(store.Layers()) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(store.Layers()))
	}

	flood, ok := store.Get("50")
	if !ok {
		t.Fatalf("expected layer 50 to be loaded")
	}
	if flood.Len() != 2 {
		t.Fatalf("expected 2 zones in layer 50, got %d", flood.Len())
	}
	if intersects(t, flood, oslo) {
		t.Fatalf("expected Oslo inside the hole not to intersect")
	}
	if !intersects(t, flood, crs.ToWorking(orb.Point{10.72, 59.93})) {
		t.Fatalf("expected point inside the zone to intersect")
	}
	if !intersects(t, flood, crs.ToWorking(orb.Point{5.32, 60.37})) {
		t.Fatalf("expected point inside the second zone to intersect")
	}

	aktsomhet, ok := store.Get("aktsomhet")
	if !ok {
		t.Fatalf("expected aktsomhet layer to be loaded")
	}
	if !intersects(t, aktsomhet, oslo) {
		t.Fatalf("expected Oslo to intersect the aktsomhet layer")
	}

	if _, ok := store.Get("200"); ok {
		t.Fatalf("expected layer with unknown coordinate system to be absent")
	}
}
