package grid

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// MinStep is the smallest chunk size whose ids stay unique with one decimal.
const MinStep = 0.1

// Region is a rectangular area in geographic degrees.
type Region struct {
	South float64 `yaml:"south" json:"south"`
	West  float64 `yaml:"west" json:"west"`
	North float64 `yaml:"north" json:"north"`
	East  float64 `yaml:"east" json:"east"`
}

func ParseBBox(v []float64) (Region, error) {
	if len(v) != 4 {
		return Region{}, fmt.Errorf("bbox needs 4 values (south west north east), got %d", len(v))
	}
	r := Region{South: v[0], West: v[1], North: v[2], East: v[3]}
	return r, r.Validate()
}

func (r Region) Validate() error {
	switch {
	case r.South < -90 || r.North > 90:
		return fmt.Errorf("latitude out of range: %s", r)
	case r.West < -180 || r.East > 180:
		return fmt.Errorf("longitude out of range: %s", r)
	case r.South >= r.North:
		return fmt.Errorf("south must be less than north: %s", r)
	case r.West >= r.East:
		return fmt.Errorf("west must be less than east: %s", r)
	}
	return nil
}

// Bound returns the region as an orb bound in lon/lat order.
func (r Region) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{r.West, r.South}, Max: orb.Point{r.East, r.North}}
}

func (r Region) String() string {
	return fmt.Sprintf("(%.1f,%.1f to %.1f,%.1f)", r.South, r.West, r.North, r.East)
}

// Hash identifies the region by its bounds. The digest is taken over the bounds
// rendered as a JSON array with python float formatting so that files produced by
// earlier runs keep their names.
func (r Region) Hash() string {
	parts := []string{pyFloat(r.South), pyFloat(r.West), pyFloat(r.North), pyFloat(r.East)}
	sum := md5.Sum([]byte("[" + strings.Join(parts, ", ") + "]"))
	return hex.EncodeToString(sum[:])[:8]
}

func pyFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Chunk is one cell of a region grid.
type Chunk struct {
	ID    string
	Bound orb.Bound
}

var ErrInvalidStep = errors.New("invalid chunk step")

// Chunks splits the region into a grid of step sized cells, latitude rows outer and
// longitude columns inner. Cells on the north and east edges are clipped to the region.
func (r Region) Chunks(step float64) ([]Chunk, error) {
	if step < MinStep || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: %v (minimum %v)", ErrInvalidStep, step, MinStep)
	}

	rows := steps(r.South, r.North, step)
	cols := steps(r.West, r.East, step)

	chunks := make([]Chunk, 0, rows*cols)
	for i := range rows {
		y0 := r.South + float64(i)*step
		y1 := min(y0+step, r.North)
		for j := range cols {
			x0 := r.West + float64(j)*step
			x1 := min(x0+step, r.East)
			chunks = append(chunks, Chunk{
				ID:    ChunkID(x0, y0),
				Bound: orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x1, y1}},
			})
		}
	}
	return chunks, nil
}

func ChunkID(lon, lat float64) string {
	return fmt.Sprintf("%.1f_%.1f", lon, lat)
}

// steps counts the values start + i*step lying below stop, tolerating float noise
// so that a region of exactly n steps yields n cells.
func steps(start, stop, step float64) int {
	n := int(math.Ceil((stop-start)/step - 1e-9))
	return max(n, 0)
}
