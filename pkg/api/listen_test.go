package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseListenAddress tests the two accepted schemes
func TestParseListenAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected ListenAddress
		wantErr  bool
	}{
		{
			name:     "tcp",
			input:    "tcp://0.0.0.0:8000",
			expected: ListenAddress{Network: "tcp", Address: "0.0.0.0:8000"},
		},
		{
			name:     "tcp localhost",
			input:    "tcp://127.0.0.1:9090",
			expected: ListenAddress{Network: "tcp", Address: "127.0.0.1:9090"},
		},
		{
			name:     "unix socket",
			input:    "unix:/run/foundry.sock",
			expected: ListenAddress{Network: "unix", Address: "/run/foundry.sock"},
		},
		{name: "tcp without port", input: "tcp://0.0.0.0", wantErr: true},
		{name: "relative unix path", input: "unix:run/foundry.sock", wantErr: true},
		{name: "bare host port", input: "0.0.0.0:8000", wantErr: true},
		{name: "unknown scheme", input: "udp://0.0.0.0:1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseListenAddress(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
