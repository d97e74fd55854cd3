package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Root is implemented by the root configuration types.
type Root[T any] interface {
	*T
	applyDefaults()
	Validate() error
}

// Load reads a YAML config file and expands environment variables.
func Load[T any, P Root[T]](path string) (P, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := P(new(T))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults[T any, P Root[T]](path string) (P, error) {
	cfg, err := Load[T, P](path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate[T any, P Root[T]](path string) (P, error) {
	cfg, err := LoadWithDefaults[T, P](path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
