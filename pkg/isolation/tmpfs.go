//go:build linux

package isolation

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

// MountTmpfs mounts a size-limited tmpfs at path. The directory must
// already exist.
func MountTmpfs(path string, sizeBytes uint64) error {
	data := "size=" + strconv.FormatUint(sizeBytes, 10)
	if err := unix.Mount("tmpfs", path, "tmpfs", 0, data); err != nil {
		return fmt.Errorf("failed to mount tmpfs at %s: %w", path, err)
	}
	// The mount is root-owned; sandboxed uids need to reach it.
	if err := unix.Chmod(path, 0o777); err != nil {
		return fmt.Errorf("failed to chmod tmpfs at %s: %w", path, err)
	}
	return nil
}

// UnmountDetach lazily unmounts the filesystem at path.
func UnmountDetach(path string) error {
	if err := unix.Unmount(path, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("umount2 %s: %w", path, err)
	}
	return nil
}
