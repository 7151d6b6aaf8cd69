package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/royalcat/floodgen/grid"
	"github.com/royalcat/floodgen/hazard"
	"github.com/royalcat/floodgen/matcher"
	"github.com/royalcat/floodgen/merger"
	"github.com/royalcat/floodgen/overpass"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// BBox is the overall area, it names the merged outputs.
	BBox    grid.Region   `yaml:"bbox"`
	Regions []grid.Region `yaml:"regions"`
	Step    float64       `yaml:"step"`

	OutputDir     string            `yaml:"output_dir"`
	HazardDir     string            `yaml:"hazard_dir"`
	HazardSources map[string]string `yaml:"hazard_sources"`

	Overpass Overpass `yaml:"overpass"`

	ChunkPause        time.Duration `yaml:"chunk_pause"`
	BatchSize         int           `yaml:"batch_size"`
	SimplifyTolerance float64       `yaml:"simplify_tolerance"`
	Threads           int           `yaml:"threads"`
}

type Overpass struct {
	Primary    string   `yaml:"primary"`
	Alternates []string `yaml:"alternates"`
	MaxRetries int      `yaml:"max_retries"`
	// ServerTimeout is the budget sent with every query.
	ServerTimeout time.Duration `yaml:"server_timeout"`
	// HTTPTimeout bounds a whole request including the response body.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

var Norway = grid.Region{South: 57.5, West: 4.0, North: 71.5, East: 32.0}

// NorwayRegions splits Norway into mostly-land regions, processed in order.
func NorwayRegions() []grid.Region {
	return []grid.Region{
		{South: 57.5, West: 4.0, North: 60.0, East: 8.0},
		{South: 57.5, West: 8.0, North: 60.0, East: 12.0},
		{South: 60.0, West: 4.0, North: 62.5, East: 8.0},
		{South: 60.0, West: 8.0, North: 62.5, East: 12.0},
		{South: 60.0, West: 12.0, North: 62.5, East: 16.0},

		{South: 62.5, West: 4.0, North: 65.0, East: 10.0},
		{South: 62.5, West: 10.0, North: 65.0, East: 16.0},
		{South: 62.5, West: 16.0, North: 65.0, East: 22.0},

		{South: 65.0, West: 10.0, North: 68.0, East: 16.0},
		{South: 65.0, West: 16.0, North: 68.0, East: 22.0},
		{South: 68.0, West: 14.0, North: 71.5, East: 22.0},
		{South: 68.0, West: 22.0, North: 71.5, East: 32.0},
	}
}

func Default() Config {
	return Config{
		BBox:          Norway,
		Regions:       NorwayRegions(),
		Step:          0.5,
		OutputDir:     "data_osm_norge",
		HazardDir:     "data",
		HazardSources: hazard.DefaultSources(),
		Overpass: Overpass{
			Primary:       overpass.DefaultPrimary,
			Alternates:    overpass.DefaultAlternates(),
			MaxRetries:    overpass.DefaultMaxRetries,
			ServerTimeout: overpass.DefaultServerTimeout,
			HTTPTimeout:   overpass.DefaultServerTimeout + 30*time.Second,
		},
		ChunkPause:        time.Second,
		BatchSize:         merger.DefaultBatchSize,
		SimplifyTolerance: matcher.DefaultTolerance,
		Threads:           runtime.GOMAXPROCS(-1),
	}
}

// Load reads a YAML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("error parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// WithBBox restricts the run to a single region.
func (c Config) WithBBox(r grid.Region) Config {
	c.BBox = r
	c.Regions = []grid.Region{r}
	return c
}

func (c Config) Validate() error {
	var errs []error

	if err := c.BBox.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bbox: %w", err))
	}
	if len(c.Regions) == 0 {
		errs = append(errs, errors.New("no regions configured"))
	}
	for i, r := range c.Regions {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("region %d: %w", i, err))
		}
	}
	if c.Step < grid.MinStep {
		errs = append(errs, fmt.Errorf("%w: step %g is below %g", grid.ErrInvalidStep, c.Step, grid.MinStep))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output dir is empty"))
	}
	if c.Overpass.Primary == "" {
		errs = append(errs, errors.New("overpass primary endpoint is empty"))
	}
	if c.Overpass.MaxRetries < 1 {
		errs = append(errs, errors.New("overpass max retries must be at least 1"))
	}
	if c.Overpass.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("overpass http timeout must be positive"))
	}
	if c.BatchSize < 1 {
		errs = append(errs, errors.New("batch size must be at least 1"))
	}

	return errors.Join(errs...)
}
