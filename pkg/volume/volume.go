//go:build linux

package volume

import (
	"fmt"
	"os"

	"github.com/docker/go-units"

	"github.com/cuemby/foundry/pkg/isolation"
	"github.com/cuemby/foundry/pkg/log"
	"github.com/cuemby/foundry/pkg/types"
)

// Volume owns a named scratch directory. When a size quota is set the
// directory is backed by a tmpfs whose unmount belongs to the volume:
// Release must run before the surrounding work directory is removed.
type Volume struct {
	name     string
	path     string
	hasTmpfs bool
	released bool
}

// Create materializes the volume directory and, if the settings carry a
// quota, mounts a size-limited tmpfs over it.
func Create(settings *types.VolumeSettings, path string) (*Volume, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create volume directory: %w", err)
	}
	v := &Volume{name: settings.Name, path: path}
	if settings.Limit != nil {
		if err := isolation.MountTmpfs(path, *settings.Limit); err != nil {
			return nil, fmt.Errorf("failed to set size limit on volume directory: %w", err)
		}
		v.hasTmpfs = true
		logger := log.Component("volume")
		logger.Debug().
			Str("name", v.name).
			Str("limit", units.BytesSize(float64(*settings.Limit))).
			Msg("mounted volume tmpfs")
	}
	return v, nil
}

// Path returns the host root of the volume.
func (v *Volume) Path() string { return v.path }

// Name returns the symbolic volume name.
func (v *Volume) Name() string { return v.name }

// Release unmounts the tmpfs, if any. A failed unmount is logged and
// swallowed: the process may be exiting and the kernel will clean up.
func (v *Volume) Release() {
	if v.released || !v.hasTmpfs {
		v.released = true
		return
	}
	v.released = true
	if err := isolation.UnmountDetach(v.path); err != nil {
		errLogger := log.Component("volume")
		errLogger.Error().Err(err).
			Str("path", v.path).
			Msg("leaking tmpfs: unmount failed")
		return
	}
	doneLogger := log.Component("volume")
	doneLogger.Debug().Str("path", v.path).Msg("destroyed volume tmpfs")
}
