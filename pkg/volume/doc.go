// Package volume manages named, optionally quota-limited scratch
// directories that requests address through volume path prefixes.
package volume
