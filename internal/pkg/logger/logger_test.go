package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf).With("request_id", "req-1")

	log.Info("Certificate issued", map[string]interface{}{
		"sheet_number": 1001,
		"agency":       "Agence Centrale",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Certificate issued", entry["message"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, float64(1001), entry["sheet_number"])
	assert.Equal(t, "Agence Centrale", entry["agency"])
	assert.Equal(t, "attestation-api", entry["service"])
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf).WithFields(map[string]interface{}{"component": "importer"})

	log.Warn("Row skipped")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "importer", entry["component"])
	assert.Equal(t, "warn", entry["level"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}
