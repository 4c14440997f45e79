//go:build linux

package fileset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Kind classifies what a File handle refers to.
type Kind int

const (
	// KindPipe is one end of an anonymous pipe
	KindPipe Kind = iota
	// KindFile is a regular file on a filesystem
	KindFile
	// KindBuffer is a sealed in-memory file holding immutable bytes
	KindBuffer
	// KindNull is the null device: reads are empty, writes are discarded
	KindNull
)

// Mode is the access mode a handle was opened with.
type Mode int

const (
	// ModeRead allows reads only
	ModeRead Mode = iota
	// ModeWrite allows writes only
	ModeWrite
	// ModeReadWrite allows both
	ModeReadWrite
)

// File wraps an OS handle together with its kind and access mode.
// Handles are owned exclusively by their registry; clones produced for
// child inheritance are owned by the spawn record and released after wait.
type File struct {
	f    *os.File
	kind Kind
	mode Mode
}

// FromBuffer materializes an immutable, seekable, read-only handle from
// in-memory bytes. The backing object is an anonymous memory file sealed
// against growth, shrink, write, and further seal changes, rewound to
// offset zero.
func FromBuffer(buf []byte, comment string) (*File, error) {
	fd, err := unix.MemfdCreate(comment, unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	rem := buf
	for len(rem) > 0 {
		n, err := unix.Write(fd, rem)
		if err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("failed to write next chunk of data: %w", err)
		}
		rem = rem[n:]
	}
	seals := unix.F_SEAL_GROW | unix.F_SEAL_SHRINK | unix.F_SEAL_WRITE | unix.F_SEAL_SEAL
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, seals); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to put seals: %w", err)
	}
	if _, err := unix.Seek(fd, 0, io.SeekStart); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to seek memfd: %w", err)
	}
	return &File{f: os.NewFile(uintptr(fd), comment), kind: KindBuffer, mode: ModeRead}, nil
}

// OpenRead opens an existing file for reading.
func OpenRead(path string) (*File, error) {
	return openWith(path, os.O_RDONLY, ModeRead)
}

// OpenWrite opens a file for writing, creating it and any missing
// parent directories.
func OpenWrite(path string) (*File, error) {
	return openWith(path, os.O_WRONLY|os.O_CREATE, ModeWrite)
}

// OpenReadWrite opens a file for reading and writing, creating it and
// any missing parent directories.
func OpenReadWrite(path string) (*File, error) {
	return openWith(path, os.O_RDWR|os.O_CREATE, ModeReadWrite)
}

func openWith(path string, flag int, mode Mode) (*File, error) {
	if flag&os.O_CREATE != 0 {
		parent := filepath.Dir(path)
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create parent directory %s: %w", parent, err)
		}
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &File{f: f, kind: KindFile, mode: mode}, nil
}

// OpenNull opens a handle to the null source. Reads always see an
// empty file; the handle is also writable so it can serve as a discard
// sink for stdout and stderr.
func OpenNull() (*File, error) {
	f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	return &File{f: f, kind: KindNull, mode: ModeReadWrite}, nil
}

// Pipe allocates an anonymous pipe and returns its read and write ends.
func Pipe() (*File, *File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("pipe: %w", err)
	}
	return &File{f: r, kind: KindPipe, mode: ModeRead},
		&File{f: w, kind: KindPipe, mode: ModeWrite},
		nil
}

// Kind returns the handle kind.
func (f *File) Kind() Kind { return f.kind }

// Mode returns the access mode.
func (f *File) Mode() Mode { return f.mode }

// CheckReadable returns an error unless the handle allows reads.
func (f *File) CheckReadable() error {
	if f.mode == ModeWrite {
		return fmt.Errorf("file opened in write mode can't be used for reads")
	}
	return nil
}

// CheckWritable returns an error unless the handle allows writes.
func (f *File) CheckWritable() error {
	if f.mode == ModeRead {
		return fmt.Errorf("file opened in read mode can't be used for writes")
	}
	return nil
}

// CloneInherit duplicates the handle so it can be passed to a child
// process across exec. dup(2) clears the close-on-exec flag on the copy.
func (f *File) CloneInherit() (*File, error) {
	fd, err := unix.Dup(int(f.f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("dup: %w", err)
	}
	return &File{f: os.NewFile(uintptr(fd), f.f.Name()), kind: f.kind, mode: f.mode}, nil
}

// Rewind seeks the handle back to offset zero. Pipe ends are not
// seekable and are left untouched.
func (f *File) Rewind() error {
	if f.kind == KindPipe {
		return nil
	}
	if _, err := f.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek file to beginning: %w", err)
	}
	return nil
}

// ReadAll rewinds the handle and reads it to the end. Only valid on
// readable handles.
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	if err := f.CheckReadable(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.Rewind(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f.f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	return data, nil
}

// OSFile exposes the underlying handle for spawn wiring. Ownership is
// not transferred.
func (f *File) OSFile() *os.File { return f.f }

// Close releases the OS handle.
func (f *File) Close() error {
	return f.f.Close()
}
