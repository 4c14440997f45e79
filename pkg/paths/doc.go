// Package paths resolves prefixed paths (host, volume, extension) to
// absolute host paths.
package paths
