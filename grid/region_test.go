package grid_test

import (
	"math"
	"testing"

	"github.com/royalcat/floodgen/grid"
)

func TestSingleChunk(t *testing.T) {
	r := grid.Region{South: 60.0, West: 10.0, North: 60.5, East: 10.5}
	chunks, err := r.Chunks(0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].ID != "10.0_60.0" {
		t.Fatalf("expected chunk 10.0_60.0, got %s", chunks[0].ID)
	}
}

func TestChunkOrderAndClipping(t *testing.T) {
	r := grid.Region{South: 60.0, West: 10.0, North: 60.7, East: 11.2}
	chunks, err := r.Chunks(0.5)
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{"10.0_60.0", "10.5_60.0", "11.0_60.0", "10.0_60.5", "10.5_60.5", "11.0_60.5"}
	if len(chunks) != len(expected) {
		t.Fatalf("expected %d chunks, got %d", len(expected), len(chunks))
	}
	for i, id := range expected {
		if chunks[i].ID != id {
			t.Fatalf("chunk %d: expected %s, got %s", i, id, chunks[i].ID)
		}
	}

	last := chunks[len(chunks)-1].Bound
	if last.Max.X() != 11.2 || last.Max.Y() != 60.7 {
		t.Fatalf("last chunk not clipped to region: %v", last)
	}
}

func TestHashMatchesEarlierRuns(t *testing.T) {
	r := grid.Region{South: 57.5, West: 4.0, North: 71.5, East: 32.0}
	if h := r.Hash(); h != "fdd7a59a" {
		t.Fatalf("expected fdd7a59a, got %s", h)
	}
	r = grid.Region{South: 60.0, West: 10.0, North: 60.5, East: 10.5}
	if h := r.Hash(); h != "db9ee975" {
		t.Fatalf("expected db9ee975, got %s", h)
	}
}

func TestRejectsSmallStep(t *testing.T) {
	r := grid.Region{South: 60.0, West: 10.0, North: 60.5, East: 10.5}
	if _, err := r.Chunks(0.05); err == nil {
		t.Fatalf("expected error for step below minimum")
	}
	if _, err := r.Chunks(0); err == nil {
		t.Fatalf("expected error for zero step")
	}
}

func TestParseBBox(t *testing.T) {
	if _, err := grid.ParseBBox([]float64{60, 10, 61}); err == nil {
		t.Fatalf("expected error for 3 values")
	}
	if _, err := grid.ParseBBox([]float64{61, 10, 60, 11}); err == nil {
		t.Fatalf("expected error for inverted latitude")
	}
	r, err := grid.ParseBBox([]float64{60, 10, 61, 11})
	if err != nil {
		t.Fatal(err)
	}
	if r.South != 60 || r.East != 11 {
		t.Fatalf("unexpected region %v", r)
	}
}

func FuzzChunksTileRegion(f *testing.F) {
	f.Add(60.0, 10.0, 60.5, 10.5, 0.5)
	f.Add(57.5, 4.0, 60.0, 8.0, 0.5)
	f.Add(68.0, 22.0, 71.5, 32.0, 0.7)
	f.Add(0.0, 0.0, 1.05, 0.33, 0.1)

	f.Fuzz(func(t *testing.T, s, w, n, e, step float64) {
		r := grid.Region{South: s, West: w, North: n, East: e}
		if r.Validate() != nil || step < grid.MinStep || step > 10 || (n-s)/step > 200 || (e-w)/step > 200 {
			t.Skip()
		}

		chunks, err := r.Chunks(step)
		if err != nil {
			t.Fatal(err)
		}

		const eps = 1e-9
		area := 0.0
		for _, c := range chunks {
			if c.Bound.Min.X() < w-eps || c.Bound.Min.Y() < s-eps || c.Bound.Max.X() > e+eps || c.Bound.Max.Y() > n+eps {
				t.Fatalf("chunk %s %v exceeds region %v", c.ID, c.Bound, r)
			}
			if c.Bound.Max.X() <= c.Bound.Min.X() || c.Bound.Max.Y() <= c.Bound.Min.Y() {
				t.Fatalf("degenerate chunk %s %v", c.ID, c.Bound)
			}
			area += (c.Bound.Max.X() - c.Bound.Min.X()) * (c.Bound.Max.Y() - c.Bound.Min.Y())
		}

		want := (e - w) * (n - s)
		if math.Abs(area-want) > 1e-6*math.Max(1, want) {
			t.Fatalf("chunks cover %v, region area %v", area, want)
		}
	})
}
