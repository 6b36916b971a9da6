// Package config loads the ambient run configuration (default concurrency,
// thresholds, and console output preferences) from an optional YAML file,
// overlaying it onto hardcoded defaults.
//
// The default-then-overlay shape, including graceful handling of a missing
// file, follows the source project's config loader.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/stratumtest/stratum/internal/duration"
	"github.com/stratumtest/stratum/internal/params"
	"github.com/stratumtest/stratum/pkg/logging"
)

const (
	userConfigDir  = ".config/stratum"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns the per-user config directory,
// panicking only if the OS cannot report a home directory at all.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}
	return filepath.Join(homeDir, userConfigDir)
}

// File is the on-disk shape of config.yaml. Every field is optional and
// overlays onto params.Default() when present.
type File struct {
	MaxConcurrency     *int    `yaml:"max_concurrency"`
	WarnThreshold      string  `yaml:"warn_threshold"`
	CriticalThreshold  string  `yaml:"critical_threshold"`
	ConsoleOutput      string  `yaml:"console_output"`
	OutputStyle        string  `yaml:"console_output_style"`
	OutputDetailLevel  string  `yaml:"console_output_detail_level"`
	OutputEncoding     string  `yaml:"console_output_encoding"`
	OutputAnsiMode     string  `yaml:"console_output_ansi_mode"`
	UseChildProcesses  *bool   `yaml:"use_child_processes"`
	ChildProcessTarget *string `yaml:"child_process_target"`
}

// Load reads configPath/config.yaml, if present, and overlays it onto
// params.Default(). A missing file is not an error; a malformed one is.
func Load(configPath string) (params.Parameters, error) {
	p := params.Default()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "no config.yaml found at %s, using defaults", configFilePath)
			return p, nil
		}
		return params.Parameters{}, fmt.Errorf("error loading config.yaml from %s: %w", configFilePath, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return params.Parameters{}, fmt.Errorf("error parsing config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "loaded configuration from %s", configFilePath)

	applyOverlay(&p, f)
	return p, nil
}

func applyOverlay(p *params.Parameters, f File) {
	if f.MaxConcurrency != nil {
		p.MaxConcurrency = *f.MaxConcurrency
	}
	if f.WarnThreshold != "" {
		if d, err := duration.Parse(f.WarnThreshold); err == nil {
			p.WarnThreshold = d
		}
	}
	if f.CriticalThreshold != "" {
		if d, err := duration.Parse(f.CriticalThreshold); err == nil {
			p.CriticalThreshold = d
		}
	}
	if f.ConsoleOutput != "" {
		p.ConsoleOutput = f.ConsoleOutput
	}
	if f.OutputStyle != "" {
		p.ConsoleOutputStyle = f.OutputStyle
	}
	if f.OutputDetailLevel != "" {
		p.ConsoleOutputDetailLevel = f.OutputDetailLevel
	}
	if f.OutputEncoding != "" {
		p.ConsoleOutputEncoding = f.OutputEncoding
	}
	if f.OutputAnsiMode != "" {
		p.ConsoleOutputAnsiMode = f.OutputAnsiMode
	}
	if f.UseChildProcesses != nil {
		p.UseChildProcesses = *f.UseChildProcesses
	}
	if f.ChildProcessTarget != nil {
		p.ChildProcessTarget = *f.ChildProcessTarget
	}
}
