package pipeline

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Stats are live counters of the current run, read concurrently by the status
// server.
type Stats struct {
	ChunksProcessed  *xsync.Counter
	ChunksSkipped    *xsync.Counter
	BuildingsFetched *xsync.Counter

	matched *xsync.MapOf[string, *xsync.Counter]
}

func NewStats() *Stats {
	return &Stats{
		ChunksProcessed:  xsync.NewCounter(),
		ChunksSkipped:    xsync.NewCounter(),
		BuildingsFetched: xsync.NewCounter(),
		matched:          xsync.NewMapOf[string, *xsync.Counter](),
	}
}

func (s *Stats) AddMatched(counts map[string]int) {
	for layer, n := range counts {
		c, _ := s.matched.LoadOrCompute(layer, xsync.NewCounter)
		c.Add(int64(n))
	}
}

// Matched returns the number of matched buildings per layer so far.
func (s *Stats) Matched() map[string]int64 {
	out := make(map[string]int64, s.matched.Size())
	s.matched.Range(func(layer string, c *xsync.Counter) bool {
		out[layer] = c.Value()
		return true
	})
	return out
}
