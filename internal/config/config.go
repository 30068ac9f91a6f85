// Package config loads the session configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config selects the compiler and working layout of a session.
type Config struct {
	// Compiler is the C++ front-end binary. It must be clang-compatible:
	// the types written into the persistent header are deduced by
	// libclang and have to agree with the compiler's own deduction.
	Compiler string `yaml:"compiler"`

	// Flags is the user-settable flag set seeded into a new session.
	Flags []string `yaml:"flags"`

	// WorkDir holds the working source, header and built modules.
	WorkDir string `yaml:"workdir"`

	// BaseName names the session files: <base>.cpp, <base>.hpp,
	// <base>_<i>.so.
	BaseName string `yaml:"base_name"`

	// CaptureStdout routes stdout of loaded fragments into the output
	// pane instead of the host terminal.
	CaptureStdout bool `yaml:"capture_stdout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Compiler:      "clang++",
		Flags:         []string{"-std=c++17"},
		WorkDir:       ".crepl",
		BaseName:      "fragment",
		CaptureStdout: true,
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Compiler == "" {
		return fmt.Errorf("config: compiler must not be empty")
	}
	if c.BaseName == "" {
		return fmt.Errorf("config: base_name must not be empty")
	}
	return nil
}
