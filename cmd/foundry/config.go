package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// serveConfig mirrors the serve command flags; a YAML config file can
// provide the same settings, with flags winning on conflict.
type serveConfig struct {
	Listen             string   `yaml:"listen"`
	WorkDir            string   `yaml:"workDir"`
	Shim               string   `yaml:"shim"`
	SkipChecks         bool     `yaml:"skipChecks"`
	LeakSandboxes      bool     `yaml:"leakSandboxes"`
	DebugDir           string   `yaml:"debugDir"`
	ExposeHostItems    []string `yaml:"exposeHostItems"`
	UIDRange           string   `yaml:"uidRange"`
	CgroupPrefix       string   `yaml:"cgroupPrefix"`
	DefaultWorkDirSize string   `yaml:"defaultWorkDirSize"`
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		Listen:  "tcp://0.0.0.0:8000",
		WorkDir: "/var/lib/foundry/work",
	}
}

// loadConfigFile reads and strictly decodes a YAML config file.
func loadConfigFile(path string, cfg *serveConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// parseUIDRange parses "low:high" with low < high.
func parseUIDRange(s string) (uint32, uint32, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("uid range must be low:high, got %q", s)
	}
	low, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid uid range: %w", err)
	}
	high, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid uid range: %w", err)
	}
	if low >= high {
		return 0, 0, fmt.Errorf("uid range low must be less than high")
	}
	return uint32(low), uint32(high), nil
}

// parseSize accepts human-readable sizes ("256MiB", "1g") or raw bytes.
func parseSize(s string) (uint64, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("size must not be negative: %q", s)
	}
	return uint64(n), nil
}
