package paths

import (
	"testing"

	"github.com/cuemby/foundry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolve tests prefix resolution against registered volumes
func TestResolve(t *testing.T) {
	resolver := NewResolver()
	resolver.AddVolume("scratch", "/work/volumes/scratch")

	tests := []struct {
		name     string
		path     types.PrefixedPath
		expected string
		wantErr  error
	}{
		{
			name:     "host prefix",
			path:     types.PrefixedPath{Prefix: types.PathPrefix{Kind: types.PathPrefixHost}, Path: "etc/hosts"},
			expected: "/etc/hosts",
		},
		{
			name:     "volume prefix",
			path:     types.PrefixedPath{Prefix: types.PathPrefix{Kind: types.PathPrefixVolume, Volume: "scratch"}, Path: "build/a.out"},
			expected: "/work/volumes/scratch/build/a.out",
		},
		{
			name:    "unknown volume",
			path:    types.PrefixedPath{Prefix: types.PathPrefix{Kind: types.PathPrefixVolume, Volume: "ghost"}, Path: "x"},
			wantErr: ErrUnknownVolume,
		},
		{
			name:    "extension prefix left unresolved",
			path:    types.PrefixedPath{Prefix: types.PathPrefix{Kind: types.PathPrefixExtension}, Path: "x"},
			wantErr: ErrExtensionUnresolved,
		},
		{
			name:    "absolute subpath",
			path:    types.PrefixedPath{Prefix: types.PathPrefix{Kind: types.PathPrefixHost}, Path: "/etc/hosts"},
			wantErr: ErrAbsoluteSubpath,
		},
		{
			name:     "empty relative path",
			path:     types.PrefixedPath{Prefix: types.PathPrefix{Kind: types.PathPrefixVolume, Volume: "scratch"}, Path: ""},
			expected: "/work/volumes/scratch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
