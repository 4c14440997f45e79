//go:build linux

package isolation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCgroup(t *testing.T) *linuxSandbox {
	t.Helper()
	return &linuxSandbox{
		cgroupDir: t.TempDir(),
		root:      "/tmp/root",
		uid:       1_000_042,
		stopWatch: make(chan struct{}),
	}
}

// TestCPUUsageParsing tests usage_usec extraction from cpu.stat
func TestCPUUsageParsing(t *testing.T) {
	sb := fakeCgroup(t)
	stat := "usage_usec 1500000\nuser_usec 1000000\nsystem_usec 500000\n"
	require.NoError(t, os.WriteFile(filepath.Join(sb.cgroupDir, "cpu.stat"), []byte(stat), 0o644))

	usage, err := sb.cpuUsage()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, usage)
}

// TestCPUUsageMissingCounter tests a cpu.stat without usage_usec
func TestCPUUsageMissingCounter(t *testing.T) {
	sb := fakeCgroup(t)
	require.NoError(t, os.WriteFile(filepath.Join(sb.cgroupDir, "cpu.stat"), []byte("user_usec 1\n"), 0o644))

	_, err := sb.cpuUsage()
	assert.Error(t, err)
}

// TestResourceUsage tests peak-memory reads with the current fallback
func TestResourceUsage(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantCPU *uint64
		wantMem *uint64
		wantErr bool
	}{
		{
			name: "peak available",
			files: map[string]string{
				"cpu.stat":    "usage_usec 2000\n",
				"memory.peak": "4096\n",
			},
			wantCPU: uptr(2_000_000),
			wantMem: uptr(4096),
		},
		{
			name: "fallback to current",
			files: map[string]string{
				"cpu.stat":       "usage_usec 1\n",
				"memory.current": "8192\n",
			},
			wantCPU: uptr(1000),
			wantMem: uptr(8192),
		},
		{
			name: "cpu only",
			files: map[string]string{
				"cpu.stat": "usage_usec 5\n",
			},
			wantCPU: uptr(5000),
		},
		{
			name:    "nothing available",
			files:   map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := fakeCgroup(t)
			for name, content := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(sb.cgroupDir, name), []byte(content), 0o644))
			}
			usage, err := sb.ResourceUsage()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCPU, usage.TimeNS)
			assert.Equal(t, tt.wantMem, usage.MemoryBytes)
		})
	}
}

// TestDebugInfo tests the attach description
func TestDebugInfo(t *testing.T) {
	sb := fakeCgroup(t)
	info := sb.DebugInfo()
	assert.Equal(t, sb.cgroupDir, info["cgroup"])
	assert.Equal(t, "/tmp/root", info["root"])
	assert.Equal(t, "1000042", info["uid"])
}

// TestNewLinuxBackendRejectsEmptyUIDRange tests settings validation
func TestNewLinuxBackendRejectsEmptyUIDRange(t *testing.T) {
	_, err := NewLinuxBackend(Settings{CgroupPrefix: "x", UIDLow: 10, UIDHigh: 10})
	assert.Error(t, err)
}

func uptr(v uint64) *uint64 { return &v }
