package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetupLevelFiltering tests severity filtering and level fallback
func TestSetupLevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		env       string
		wantDebug bool
		wantErr   bool
	}{
		{name: "explicit debug", level: "debug", wantDebug: true},
		{name: "explicit error", level: "error", wantDebug: false},
		{name: "env fallback", level: "", env: "debug", wantDebug: true},
		{name: "default is info", level: "", wantDebug: false},
		{name: "unknown level", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLevel, tt.env)
			var buf bytes.Buffer
			err := Setup(Options{Level: tt.level, Writer: &buf})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			Component("test").Debug().Msg("probe")
			if tt.wantDebug {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

// TestScopedFields tests that scoped loggers stamp their context
func TestScopedFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "info", Writer: &buf}))

	Sandbox("req-1", "main").Info().Msg("created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "main", line["sandbox"])
	assert.Equal(t, "created", line["message"])
	assert.Contains(t, line, "time")
}

// TestRequestScope tests the request logger field
func TestRequestScope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "info", Writer: &buf}))

	Request("req-2").Info().Msg("starting step")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-2", line["request_id"])
}
