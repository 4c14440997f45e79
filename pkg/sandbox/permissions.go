//go:build linux

package sandbox

import (
	"fmt"
	"os"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/rs/zerolog"
)

// loosenPermissions copies the owner permission bits of path to group
// and others, so the nobody-like sandbox uid can use a read-write mount.
func loosenPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat exposed path %s: %w", path, err)
	}
	current := info.Mode().Perm()
	owner := (current >> 6) & 0o7
	mode := (current &^ 0o77) | owner<<3 | owner
	if mode == current {
		return nil
	}
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("failed to change permissions for %s: %w", path, err)
	}
	return nil
}

// validateSharedItem warns when the "others" permission bits of a shared
// item do not cover the requested access. Sandboxed processes run as a
// nobody-like uid, so only the lowest three bits matter.
func validateSharedItem(logger zerolog.Logger, item specs.Mount) {
	info, err := os.Stat(item.Source)
	if err != nil {
		logger.Warn().Err(err).
			Str("path", item.Source).
			Msg("exposed path seems to be unusable: not accessible")
		return
	}
	others := uint32(info.Mode().Perm()) & 0o7
	desired := uint32(0o7)
	for _, opt := range item.Options {
		if opt == "ro" {
			desired = 0o5
			break
		}
	}
	if info.Mode().IsRegular() {
		// Execute permission is not expected of plain files.
		desired &^= 0o1
	}
	if others&desired != desired {
		logger.Warn().
			Str("path", item.Source).
			Uint32("want", desired).
			Uint32("have", others).
			Msg("exposed path seems to be unusable: insufficient permissions for others")
	}
}
