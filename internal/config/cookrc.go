package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the shape of .cookrc.yaml, cook's optional per-project
// defaults file.
type File struct {
	Cookbook           string            `yaml:"cookbook"`
	Jobs               int               `yaml:"jobs"`
	FingerprintBackend string            `yaml:"fingerprint_backend"`
	StatCacheSize      int               `yaml:"stat_cache_size"`
	Stripdot           *bool             `yaml:"stripdot"`
	Continue           bool              `yaml:"continue"`
	MetricsAddr        string            `yaml:"metrics_addr"`
	HostCapacity       map[string]int    `yaml:"host_capacity"`
	Defaults           map[string]string `yaml:"defaults"`
}

// LoadFile reads and parses path. A missing file is not an error; it
// returns the zero File so callers fall through to built-in defaults.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// BaseOptions converts a loaded File's Defaults map into the base
// level of an option Stack.
func (f File) BaseOptions() Options {
	out := make(Options, len(f.Defaults))
	for k, v := range f.Defaults {
		out[k] = v
	}
	return out
}

// FirstSet returns the first non-empty string among values, in
// priority order (conventionally CLI flag, then environment variable,
// then .cookrc.yaml, then a built-in fallback).
func FirstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
