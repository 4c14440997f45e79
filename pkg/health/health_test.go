//go:build linux

package health

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDevNullChecker tests the null device probe
func TestDevNullChecker(t *testing.T) {
	res := DevNullChecker{}.Check(context.Background())
	assert.True(t, res.Healthy)
	assert.False(t, res.CheckedAt.IsZero())
}

// TestWorkDirChecker tests work directory validation
func TestWorkDirChecker(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		healthy bool
	}{
		{
			name:    "existing writable dir",
			path:    func(t *testing.T) string { return t.TempDir() },
			healthy: true,
		},
		{
			name: "missing dir gets created",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "not", "yet", "there")
			},
			healthy: true,
		},
		{
			name:    "path under a file fails",
			path:    func(t *testing.T) string { return filepath.Join("/dev/null", "sub") },
			healthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := WorkDirChecker{Path: tt.path(t)}.Check(context.Background())
			assert.Equal(t, tt.healthy, res.Healthy, res.Message)
		})
	}
}

// TestReportAggregation tests healthy/failure aggregation
func TestReportAggregation(t *testing.T) {
	workDir := t.TempDir()
	report := Run(context.Background(), ReadyCheckers(workDir))
	require.Len(t, report.Results, 2)
	assert.True(t, report.Healthy())
	assert.Empty(t, report.Failures())

	report = Run(context.Background(), []Checker{
		DevNullChecker{},
		WorkDirChecker{Path: filepath.Join("/dev/null", "sub")},
	})
	assert.False(t, report.Healthy())
	assert.Len(t, report.Failures(), 1)
}
