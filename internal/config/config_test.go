package config

import (
	"testing"
	"time"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	"github.com/couchcryptid/ocean-contour-service/internal/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSamplesPath = "data/samples.csv"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SAMPLES_PATH", testSamplesPath)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testSamplesPath, cfg.SamplesPath)
	assert.Equal(t, FormatAuto, cfg.SamplesFormat)
	assert.Equal(t, "samples", cfg.SamplesTable)
	assert.Empty(t, cfg.CoastlinePath)
	assert.InDelta(t, 15.0, cfg.RegionMarginKm, 0)
	assert.InDelta(t, 0.05, cfg.GridCellSize, 0)
	assert.InDelta(t, 0.001, cfg.GridMinCellSize, 0)
	assert.Equal(t, 4000000, cfg.GridMaxCells)
	assert.InDelta(t, 2.0, cfg.IDWPower, 0)
	assert.Equal(t, "degrees", cfg.IDWUnits)
	assert.Equal(t, 10, cfg.BreakCount)
	assert.Equal(t, 4, cfg.WarmWorkers)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "ocean-contours", cfg.KafkaSinkTopic)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.RedisTTL)
	assert.Empty(t, cfg.OTelEndpoint)
	assert.Empty(t, cfg.Breaks())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("SAMPLES_PATH", "/data/ocean.sqlite")
	t.Setenv("SAMPLES_TABLE", "casts")
	t.Setenv("COASTLINE_PATH", "/data/land.geojson")
	t.Setenv("REGION_MARGIN_KM", "20")
	t.Setenv("GRID_CELL_SIZE", "0.02")
	t.Setenv("GRID_MAX_CELLS", "1000000")
	t.Setenv("IDW_POWER", "3")
	t.Setenv("IDW_UNITS", "kilometers")
	t.Setenv("BREAK_COUNT", "5")
	t.Setenv("BREAK_VALUES_TEMP_C", "4,8,12")
	t.Setenv("BREAK_VALUES_PH", "7.9")
	t.Setenv("CONTOUR_SIMPLIFY_TOLERANCE", "0.001")
	t.Setenv("WARM_WORKERS", "8")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "contours")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TTL", "1h")
	t.Setenv("OTEL_ENDPOINT", "http://localhost:4318")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, FormatSQLite, cfg.SourceFormat())
	assert.Equal(t, "casts", cfg.SamplesTable)
	assert.Equal(t, "/data/land.geojson", cfg.CoastlinePath)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "contours", cfg.KafkaSinkTopic)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, time.Hour, cfg.RedisTTL)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://localhost:4318", cfg.OTelEndpoint)

	assert.Equal(t, map[domain.Parameter][]float64{
		domain.TemperatureC: {4, 8, 12},
		domain.PH:           {7.9},
	}, cfg.Breaks())

	opts := cfg.PipelineOptions()
	assert.Equal(t, field.Options{CellSize: 0.02, Power: 3, Units: field.Kilometers, MaxCells: 1000000, MinCellSize: 0.001}, opts.Field)
	assert.InDelta(t, 20.0, opts.MarginKm, 0)
	assert.Equal(t, 5, opts.BreakCount)
	assert.InDelta(t, 0.001, opts.SimplifyTolerance, 0)
	assert.Equal(t, 8, opts.WarmWorkers)
}

func TestConfig_SourceFormat(t *testing.T) {
	tests := []struct {
		path, format, want string
	}{
		{"samples.csv", FormatAuto, FormatCSV},
		{"samples.DB", FormatAuto, FormatSQLite},
		{"samples.sqlite3", FormatAuto, FormatSQLite},
		{"export.txt", FormatAuto, FormatCSV},
		{"samples.db", FormatCSV, FormatCSV},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.format, func(t *testing.T) {
			cfg := &Config{SamplesPath: tt.path, SamplesFormat: tt.format}
			assert.Equal(t, tt.want, cfg.SourceFormat())
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "missing samples path", env: map[string]string{"SAMPLES_PATH": ""}, wantErr: "SAMPLES_PATH"},
		{name: "unknown format", env: map[string]string{"SAMPLES_FORMAT": "xlsx"}, wantErr: "SAMPLES_FORMAT"},
		{name: "negative margin", env: map[string]string{"REGION_MARGIN_KM": "-1"}, wantErr: "REGION_MARGIN_KM"},
		{name: "cell below minimum", env: map[string]string{"GRID_CELL_SIZE": "0.0001"}, wantErr: "GRID_CELL_SIZE"},
		{name: "zero max cells", env: map[string]string{"GRID_MAX_CELLS": "0"}, wantErr: "GRID_MAX_CELLS"},
		{name: "zero power", env: map[string]string{"IDW_POWER": "0"}, wantErr: "IDW_POWER"},
		{name: "unknown units", env: map[string]string{"IDW_UNITS": "miles"}, wantErr: "IDW_UNITS"},
		{name: "single break", env: map[string]string{"BREAK_COUNT": "1"}, wantErr: "BREAK_COUNT"},
		{name: "no workers", env: map[string]string{"WARM_WORKERS": "0"}, wantErr: "WARM_WORKERS"},
		{name: "negative shutdown", env: map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, wantErr: "SHUTDOWN_TIMEOUT"},
		{name: "bad shutdown", env: map[string]string{"SHUTDOWN_TIMEOUT": "soon"}, wantErr: "parse env"},
		{name: "bad break list", env: map[string]string{"BREAK_VALUES_TEMP_C": "4,warm"}, wantErr: "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SAMPLES_PATH", testSamplesPath)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_OptionalAdapters(t *testing.T) {
	t.Setenv("SAMPLES_PATH", testSamplesPath)
	cfg, err := Load()
	require.NoError(t, err)

	// An empty variable falls back to its default, so these states are only
	// reachable by building the struct directly.
	kafka := *cfg
	kafka.KafkaBrokers = []string{"b:9092"}
	kafka.KafkaSinkTopic = ""
	require.ErrorContains(t, kafka.validate(), "KAFKA_SINK_TOPIC")

	redis := *cfg
	redis.RedisAddr = "localhost:6379"
	redis.RedisTTL = 0
	require.ErrorContains(t, redis.validate(), "REDIS_TTL")
}
