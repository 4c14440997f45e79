//go:build linux

package fileset

import (
	"errors"
	"fmt"

	"github.com/cuemby/foundry/pkg/types"
)

var (
	// ErrDuplicateFileID indicates an id was bound twice within a request
	ErrDuplicateFileID = errors.New("duplicate file id")

	// ErrUnknownFileID indicates a lookup of an id that was never bound
	ErrUnknownFileID = errors.New("unknown file id")
)

// Registry maps file ids to handles with insert-once semantics. It is
// request-local and needs no locking.
type Registry struct {
	files map[types.FileID]*File
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[types.FileID]*File)}
}

// Insert binds a handle to an id. Binding an id twice fails and the
// handle is not consumed.
func (r *Registry) Insert(id types.FileID, f *File) error {
	if _, ok := r.files[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFileID, id)
	}
	r.files[id] = f
	return nil
}

// InsertPair binds both ends of a pipe, or neither. The two ids must be
// distinct and unused.
func (r *Registry) InsertPair(readID, writeID types.FileID, read, write *File) error {
	if readID == writeID {
		return fmt.Errorf("%w: %s", ErrDuplicateFileID, readID)
	}
	if err := r.Insert(readID, read); err != nil {
		return err
	}
	if err := r.Insert(writeID, write); err != nil {
		delete(r.files, readID)
		return err
	}
	return nil
}

// Get looks up the handle bound to an id.
func (r *Registry) Get(id types.FileID) (*File, error) {
	f, ok := r.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFileID, id)
	}
	return f, nil
}

// Close releases every handle in the registry.
func (r *Registry) Close() error {
	var errs []error
	for id, f := range r.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	r.files = make(map[types.FileID]*File)
	return errors.Join(errs...)
}
