//go:build linux

package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/foundry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateWithoutQuota tests the plain-directory volume
func TestCreateWithoutQuota(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes", "scratch")
	v, err := Create(&types.VolumeSettings{Name: "scratch"}, path)
	require.NoError(t, err)

	assert.Equal(t, "scratch", v.Name())
	assert.Equal(t, path, v.Path())
	assert.DirExists(t, path)

	// Writable and release is a no-op without a tmpfs.
	require.NoError(t, os.WriteFile(filepath.Join(path, "f"), []byte("x"), 0o644))
	v.Release()
	v.Release()
	assert.DirExists(t, path)
}

// TestCreateWithQuota tests the tmpfs-backed volume; requires root
func TestCreateWithQuota(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("tmpfs mounts require root")
	}

	path := filepath.Join(t.TempDir(), "limited")
	limit := uint64(1 << 20)
	v, err := Create(&types.VolumeSettings{Name: "limited", Limit: &limit}, path)
	require.NoError(t, err)
	defer v.Release()

	// Small writes fit inside the quota.
	require.NoError(t, os.WriteFile(filepath.Join(path, "small"), make([]byte, 4096), 0o644))

	// A write beyond the quota must fail.
	err = os.WriteFile(filepath.Join(path, "big"), make([]byte, 2<<20), 0o644)
	assert.Error(t, err)
}
