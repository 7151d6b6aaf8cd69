package stats

import (
	"fmt"
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/royalcat/floodgen/internal/fsutil"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

// Counter names the report treats as throughput.
const (
	ChunksProcessed  = "chunks_processed"
	BuildingsFetched = "buildings_fetched"
)

// CounterFunc reads the pipeline counters. It is called from the sampling
// goroutine and must be safe for concurrent use.
type CounterFunc func() map[string]int64

type Sample struct {
	Elapsed    time.Duration
	Chunks     int64
	Buildings  int64
	HeapAlloc  uint64
	RSS        uint64
	CPUPercent float64
	HostCPU    float64
}

// Report is the outcome of one run.
type Report struct {
	Start    time.Time
	End      time.Time
	Interval time.Duration
	Samples  []Sample
	Counters map[string]int64

	PeakHeap        uint64
	PeakRSS         uint64
	AvgCPU          float64
	ChunksPerMinute float64
	BuildingsPerMin float64

	// Busiest is the sample closing the window with the most chunks completed.
	Busiest     Sample
	BusiestRate float64
}

func (r *Report) Elapsed() time.Duration {
	return r.End.Sub(r.Start)
}

type Collector struct {
	interval time.Duration
	counters CounterFunc
	proc     *process.Process

	mu      sync.Mutex
	start   time.Time
	samples []Sample

	stop chan struct{}
	done chan struct{}
}

func NewCollector(interval time.Duration, counters CounterFunc) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}
	if counters == nil {
		counters = func() map[string]int64 { return nil }
	}

	return &Collector{
		interval: interval,
		counters: counters,
		proc:     proc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (c *Collector) Start() {
	c.start = time.Now()
	go c.loop()
}

func (c *Collector) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.stop:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	counters := c.counters()
	s := Sample{
		Elapsed:   time.Since(c.start),
		Chunks:    counters[ChunksProcessed],
		Buildings: counters[BuildingsFetched],
		HeapAlloc: mem.HeapAlloc,
	}
	if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
		s.RSS = info.RSS
	}
	if p, err := c.proc.CPUPercent(); err == nil {
		s.CPUPercent = p
	}
	if host, err := cpu.Percent(0, false); err == nil && len(host) > 0 {
		s.HostCPU = host[0]
	}

	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

// Stop takes a final sample and summarizes the run.
func (c *Collector) Stop() Report {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{
		Start:    c.start,
		End:      time.Now(),
		Interval: c.interval,
		Samples:  slices.Clone(c.samples),
		Counters: maps.Clone(c.counters()),
	}
	r.summarize()
	return r
}

func (r *Report) summarize() {
	if len(r.Samples) == 0 {
		return
	}

	var cpuTotal float64
	for i, s := range r.Samples {
		r.PeakHeap = max(r.PeakHeap, s.HeapAlloc)
		r.PeakRSS = max(r.PeakRSS, s.RSS)
		cpuTotal += s.CPUPercent

		if i == 0 {
			continue
		}
		prev := r.Samples[i-1]
		if window := (s.Elapsed - prev.Elapsed).Minutes(); window > 0 {
			if rate := float64(s.Chunks-prev.Chunks) / window; rate > r.BusiestRate {
				r.BusiestRate = rate
				r.Busiest = s
			}
		}
	}
	r.AvgCPU = cpuTotal / float64(len(r.Samples))

	last := r.Samples[len(r.Samples)-1]
	if minutes := last.Elapsed.Minutes(); minutes > 0 {
		r.ChunksPerMinute = float64(last.Chunks) / minutes
		r.BuildingsPerMin = float64(last.Buildings) / minutes
	}
}

const rule = "--------------------------------------------------------------------------------\n"

// maxTimelineRows bounds the timeline table of long runs.
const maxTimelineRows = 60

// SaveToFile writes a plain text report.
func (r *Report) SaveToFile(filename string) error {
	var sb strings.Builder

	sb.WriteString("FLOODGEN RUN REPORT\n")
	sb.WriteString(rule)
	fmt.Fprintf(&sb, "  Started:     %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(&sb, "  Finished:    %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(&sb, "  Duration:    %s\n\n", r.Elapsed().Round(time.Second))

	sb.WriteString("THROUGHPUT\n")
	sb.WriteString(rule)
	fmt.Fprintf(&sb, "  Chunks/min:     %.2f\n", r.ChunksPerMinute)
	fmt.Fprintf(&sb, "  Buildings/min:  %s\n", humanize.Comma(int64(r.BuildingsPerMin)))
	if r.BusiestRate > 0 {
		fmt.Fprintf(&sb, "  Busiest window: %.2f chunks/min at %s\n", r.BusiestRate, r.Busiest.Elapsed.Round(time.Second))
	}
	sb.WriteString("\n")

	if len(r.Counters) > 0 {
		sb.WriteString("PIPELINE\n")
		sb.WriteString(rule)
		for _, name := range slices.Sorted(maps.Keys(r.Counters)) {
			fmt.Fprintf(&sb, "  %-28s %s\n", name+":", humanize.Comma(r.Counters[name]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("RESOURCES\n")
	sb.WriteString(rule)
	fmt.Fprintf(&sb, "  Peak heap:   %s\n", humanize.IBytes(r.PeakHeap))
	fmt.Fprintf(&sb, "  Peak RSS:    %s\n", humanize.IBytes(r.PeakRSS))
	fmt.Fprintf(&sb, "  Average CPU: %.1f%%\n\n", r.AvgCPU)

	sb.WriteString("TIMELINE\n")
	sb.WriteString(rule)
	fmt.Fprintf(&sb, "  %-10s %-10s %-12s %-10s %-10s %-6s %-6s\n",
		"elapsed", "chunks", "buildings", "heap", "rss", "cpu%", "host%")
	for _, s := range thin(r.Samples, maxTimelineRows) {
		fmt.Fprintf(&sb, "  %-10s %-10d %-12d %-10s %-10s %-6.1f %-6.1f\n",
			s.Elapsed.Round(time.Second),
			s.Chunks,
			s.Buildings,
			humanize.IBytes(s.HeapAlloc),
			humanize.IBytes(s.RSS),
			s.CPUPercent,
			s.HostCPU,
		)
	}

	if err := fsutil.WriteBytesAtomic(filename, []byte(sb.String())); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}

// thin picks at most n evenly spaced samples, always keeping the last one.
func thin(samples []Sample, n int) []Sample {
	if len(samples) <= n {
		return samples
	}
	out := make([]Sample, 0, n)
	step := float64(len(samples)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out = append(out, samples[int(float64(i)*step+0.5)])
	}
	return out
}
