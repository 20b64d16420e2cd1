package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/field"
	"github.com/couchcryptid/ocean-contour-service/internal/pipeline"
)

// Sample source formats.
const (
	FormatAuto   = "auto"
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SamplesPath   string `env:"SAMPLES_PATH"`
	SamplesFormat string `env:"SAMPLES_FORMAT" envDefault:"auto"`
	SamplesTable  string `env:"SAMPLES_TABLE" envDefault:"samples"`
	CoastlinePath string `env:"COASTLINE_PATH"`

	RegionMarginKm    float64 `env:"REGION_MARGIN_KM" envDefault:"15"`
	GridCellSize      float64 `env:"GRID_CELL_SIZE" envDefault:"0.05"`
	GridMinCellSize   float64 `env:"GRID_MIN_CELL_SIZE" envDefault:"0.001"`
	GridMaxCells      int     `env:"GRID_MAX_CELLS" envDefault:"4000000"`
	IDWPower          float64 `env:"IDW_POWER" envDefault:"2"`
	IDWUnits          string  `env:"IDW_UNITS" envDefault:"degrees"`
	BreakCount        int     `env:"BREAK_COUNT" envDefault:"10"`
	SimplifyTolerance float64 `env:"CONTOUR_SIMPLIFY_TOLERANCE" envDefault:"0"`
	WarmWorkers       int     `env:"WARM_WORKERS" envDefault:"4"`

	// Explicit thresholds per parameter; empty means derive BreakCount parts.
	BreakValuesTempC    []float64 `env:"BREAK_VALUES_TEMP_C" envSeparator:","`
	BreakValuesSalinity []float64 `env:"BREAK_VALUES_SALINITY_PSU" envSeparator:","`
	BreakValuesOxygen   []float64 `env:"BREAK_VALUES_OXYGEN_MG_L" envSeparator:","`
	BreakValuesPH       []float64 `env:"BREAK_VALUES_PH" envSeparator:","`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Kafka publication is enabled when brokers are set.
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaSinkTopic string   `env:"KAFKA_SINK_TOPIC" envDefault:"ocean-contours"`

	// The Redis mirror is enabled when an address is set.
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisTTL      time.Duration `env:"REDIS_TTL" envDefault:"24h"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.SamplesPath) == "" {
		return errors.New("SAMPLES_PATH is required")
	}
	switch c.SamplesFormat {
	case FormatAuto, FormatCSV, FormatSQLite:
	default:
		return fmt.Errorf("SAMPLES_FORMAT must be one of auto, csv, sqlite; got %q", c.SamplesFormat)
	}
	if c.RegionMarginKm < 0 {
		return errors.New("REGION_MARGIN_KM must not be negative")
	}
	if c.GridMinCellSize <= 0 {
		return errors.New("GRID_MIN_CELL_SIZE must be positive")
	}
	if c.GridCellSize < c.GridMinCellSize {
		return fmt.Errorf("GRID_CELL_SIZE must be at least GRID_MIN_CELL_SIZE (%g)", c.GridMinCellSize)
	}
	if c.GridMaxCells < 1 {
		return errors.New("GRID_MAX_CELLS must be positive")
	}
	if c.IDWPower <= 0 {
		return errors.New("IDW_POWER must be positive")
	}
	if _, err := field.ParseUnits(c.IDWUnits); err != nil {
		return fmt.Errorf("IDW_UNITS: %w", err)
	}
	if c.BreakCount < 2 {
		return errors.New("BREAK_COUNT must be at least 2")
	}
	if c.SimplifyTolerance < 0 {
		return errors.New("CONTOUR_SIMPLIFY_TOLERANCE must not be negative")
	}
	if c.WarmWorkers < 1 {
		return errors.New("WARM_WORKERS must be at least 1")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.RedisAddr != "" && c.RedisTTL <= 0 {
		return errors.New("REDIS_TTL must be positive")
	}
	return nil
}

// SourceFormat resolves "auto" from the samples file extension.
func (c *Config) SourceFormat() string {
	if c.SamplesFormat != FormatAuto {
		return c.SamplesFormat
	}
	switch strings.ToLower(filepath.Ext(c.SamplesPath)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// Breaks returns the explicit thresholds keyed by parameter.
func (c *Config) Breaks() map[domain.Parameter][]float64 {
	out := make(map[domain.Parameter][]float64)
	for p, v := range map[domain.Parameter][]float64{
		domain.TemperatureC: c.BreakValuesTempC,
		domain.SalinityPSU:  c.BreakValuesSalinity,
		domain.OxygenMgL:    c.BreakValuesOxygen,
		domain.PH:           c.BreakValuesPH,
	} {
		if len(v) > 0 {
			out[p] = v
		}
	}
	return out
}

// PipelineOptions maps the settings onto the service options.
func (c *Config) PipelineOptions() pipeline.Options {
	units, _ := field.ParseUnits(c.IDWUnits)
	return pipeline.Options{
		Field: field.Options{
			CellSize:    c.GridCellSize,
			Power:       c.IDWPower,
			Units:       units,
			MaxCells:    c.GridMaxCells,
			MinCellSize: c.GridMinCellSize,
		},
		MarginKm:          c.RegionMarginKm,
		BreakCount:        c.BreakCount,
		Breaks:            c.Breaks(),
		SimplifyTolerance: c.SimplifyTolerance,
		WarmWorkers:       c.WarmWorkers,
	}
}
