// Package config loads and validates aerial-view settings.
//
// Settings come from three layers, later layers winning: built-in defaults,
// an optional .aerial-view.yaml in the analyzed directory, and command-line
// flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the analyzed directory.
const FileName = ".aerial-view.yaml"

// Report formats.
const (
	FormatHTML = "html"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// DefaultOutputDir is where reports are written unless configured otherwise.
const DefaultOutputDir = ".aerial-view"

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("nospace", validateNoSpace)
}

// validateNoSpace rejects strings containing whitespace.
func validateNoSpace(fl validator.FieldLevel) bool {
	return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
}

// Config holds the settings of one analysis run.
type Config struct {
	// BasePackages are the scope prefixes. Empty means the main module path.
	BasePackages []string `yaml:"base_packages,omitempty" validate:"dive,required,nospace"`

	// MaxNodes bounds the number of units in the view. Nil means unbounded.
	MaxNodes *int `yaml:"max_nodes,omitempty"`

	// IncludeTests traverses _test.go files too.
	IncludeTests bool `yaml:"include_tests"`

	// IncludeIsolated adds declared units that take part in no relationship.
	IncludeIsolated bool `yaml:"include_isolated"`

	// GenerateView writes the HTML view when the html format is selected.
	GenerateView bool `yaml:"generate_view"`

	// OutputDir is where reports are written, relative to the analyzed directory.
	OutputDir string `yaml:"output_dir" validate:"required"`

	// Formats selects the reports to write.
	Formats []string `yaml:"formats" validate:"min=1,dive,oneof=html json csv"`

	// Patterns are the go/packages load patterns.
	Patterns []string `yaml:"patterns" validate:"min=1,dive,required"`

	// Concurrency caps parallel package extraction. Zero means GOMAXPROCS.
	Concurrency int `yaml:"concurrency" validate:"gte=0"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		GenerateView: true,
		OutputDir:    DefaultOutputDir,
		Formats:      []string{FormatHTML, FormatJSON, FormatCSV},
		Patterns:     []string{"./..."},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads FileName from dir.
func LoadDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Write stores cfg as YAML at path.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings against their constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("field %s fails %q", first.Namespace(), first.Tag())
		}
		return err
	}
	return nil
}

// HasFormat reports whether format is selected.
func (c *Config) HasFormat(format string) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// ParseList splits a comma-separated flag value, trimming blanks.
func ParseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
