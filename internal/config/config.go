// Package config loads the gobufr command line configuration.
//
// The configuration comes from a single YAML file named by the --config
// flag or the GOBUFR_CONFIG environment variable. Without either, the
// defaults apply. Flags given on the command line override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/d21d3q/gobufr/internal/options"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "GOBUFR_CONFIG"

// Config is the CLI configuration.
type Config struct {
	Tables TablesConfig `yaml:"tables"`
	Output OutputConfig `yaml:"output"`
	Encode EncodeConfig `yaml:"encode"`
	Limits LimitsConfig `yaml:"limits"`

	// SkipErrors logs and skips messages that fail to decode.
	SkipErrors bool `yaml:"skip_errors"`
}

// TablesConfig locates table files.
type TablesConfig struct {
	Dir string `yaml:"dir"`
}

// OutputConfig controls how decoded messages are rendered.
type OutputConfig struct {
	// Format is one of json, yaml or cbor.
	Format string `yaml:"format"`
	// Zstd compresses converted message streams.
	Zstd bool `yaml:"zstd"`
}

// EncodeConfig holds defaults for the convert command.
type EncodeConfig struct {
	Edition    int  `yaml:"edition"`
	Compressed bool `yaml:"compressed"`
	CheckDigit bool `yaml:"check_digit"`
	// Template is a "category.subcategory.local" hint applied when the
	// source message leaves those fields at zero.
	Template string `yaml:"template"`
}

// LimitsConfig bounds the work spent on one message. Zero keeps the codec
// default.
type LimitsConfig struct {
	MaxProgram   int `yaml:"max_program"`
	MaxVariables int `yaml:"max_variables"`
}

// OutputFormats lists the accepted values of output.format.
var OutputFormats = []string{"json", "yaml", "cbor"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tables: TablesConfig{Dir: "tables"},
		Output: OutputConfig{Format: "json"},
		Encode: EncodeConfig{Edition: 4},
	}
}

// Load reads the file named by GOBUFR_CONFIG, or returns the defaults when
// it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Tables.Dir = expandVars(cfg.Tables.Dir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Tables.Dir == "" {
		errs = append(errs, errors.New("tables.dir is required"))
	}
	if !slices.Contains(OutputFormats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format must be one of: %v", OutputFormats))
	}
	if e := c.Encode.Edition; e < 2 || e > 4 {
		errs = append(errs, fmt.Errorf("encode.edition %d is not 2, 3 or 4", e))
	}
	if _, _, err := options.ParseTemplate(c.Encode.Template); err != nil {
		errs = append(errs, fmt.Errorf("encode.template: %w", err))
	}
	if c.Limits.MaxProgram < 0 || c.Limits.MaxVariables < 0 {
		errs = append(errs, errors.New("limits must not be negative"))
	}
	return errors.Join(errs...)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
