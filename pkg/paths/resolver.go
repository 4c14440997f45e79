package paths

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cuemby/foundry/pkg/types"
)

var (
	// ErrUnknownVolume indicates a volume prefix that was never registered
	ErrUnknownVolume = errors.New("unknown volume")

	// ErrExtensionUnresolved indicates an extension prefix that the shim
	// should have rewritten before the request reached the engine
	ErrExtensionUnresolved = errors.New("extension prefix must be resolved by the shim")

	// ErrAbsoluteSubpath indicates a prefixed path whose relative part is
	// not actually relative
	ErrAbsoluteSubpath = errors.New("prefixed path must be relative")
)

// Resolver maps symbolic path prefixes to absolute host roots.
type Resolver struct {
	volumes map[string]string
}

// NewResolver creates a resolver with no volumes registered.
func NewResolver() *Resolver {
	return &Resolver{volumes: make(map[string]string)}
}

// AddVolume registers the host root for a named volume.
func (r *Resolver) AddVolume(name, root string) {
	r.volumes[name] = root
}

func (r *Resolver) resolvePrefix(prefix types.PathPrefix) (string, error) {
	switch prefix.Kind {
	case types.PathPrefixHost:
		return "/", nil
	case types.PathPrefixVolume:
		root, ok := r.volumes[prefix.Volume]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownVolume, prefix.Volume)
		}
		return root, nil
	case types.PathPrefixExtension:
		return "", ErrExtensionUnresolved
	}
	return "", fmt.Errorf("invalid path prefix %q", prefix.Kind)
}

// Resolve joins a prefixed path onto its root. The relative part must
// itself be relative.
func (r *Resolver) Resolve(p types.PrefixedPath) (string, error) {
	if filepath.IsAbs(p.Path) {
		return "", fmt.Errorf("%w: %s", ErrAbsoluteSubpath, p.Path)
	}
	root, err := r.resolvePrefix(p.Prefix)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, p.Path), nil
}
