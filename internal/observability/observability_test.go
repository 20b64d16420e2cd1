package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("key computed", "key", "2020/surface/temp_c")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "key computed", entry["msg"])
	assert.Equal(t, "2020/surface/temp_c", entry["key"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "debug", "text").Debug("visible", "points", 3)
	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "points=3")
}

func TestSetupTracing_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "", "ocean-contour-service")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.ClipFallbacks.Inc()
	a.KeysComputed.WithLabelValues("contours").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ClipFallbacks))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ClipFallbacks))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.KeysComputed.WithLabelValues("contours")))
}
