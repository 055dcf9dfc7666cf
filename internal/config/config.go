// Package config loads dirconv conversion settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/interchange"
	"github.com/isometry/dirconv/internal/ldap"
)

// StdStream is the path naming standard input or output.
const StdStream = "-"

// Endpoint names one side of a conversion.
type Endpoint struct {
	Format string `yaml:"format" default:"ldif"`
	// Version 0 selects the format's default version.
	Version int    `yaml:"version,omitempty"`
	// Path is a file path or StdStream; empty means StdStream.
	Path string `yaml:"path"`
}

// Descriptor resolves the endpoint's engine. Format may carry its version,
// as in "dsml2"; a non-zero Version overrides it.
func (e Endpoint) Descriptor() (interchange.Descriptor, error) {
	d, err := interchange.ParseDescriptor(e.Format)
	if err != nil {
		return interchange.Descriptor{}, err
	}
	if e.Version != 0 {
		d.Version = e.Version
	}
	return d.Normalize()
}

// LDIFSection configures LDIF output.
type LDIFSection struct {
	Separator      string `yaml:"separator" default:":"`
	FoldWidth      int    `yaml:"fold_width" default:"77"`
	NoFold         bool   `yaml:"no_fold"`
	IncludeVersion bool   `yaml:"include_version"`
	ValuesToFiles  bool   `yaml:"values_to_files"`
	SpoolDir       string `yaml:"spool_dir" default:"."`
}

// DSMLSection configures DSML output.
type DSMLSection struct {
	Indent            string `yaml:"indent" default:"  "`
	KindAwareRequests bool   `yaml:"kind_aware_requests"`
	RequestID         string `yaml:"request_id"`
	GenerateRequestID bool   `yaml:"generate_request_id"`
}

// AttributesSection holds the attribute filters.
type AttributesSection struct {
	Binary          []string `yaml:"binary"`
	Exclude         []string `yaml:"exclude"`
	Include         []string `yaml:"include"`
	NoDefaultBinary bool     `yaml:"no_default_binary"`
}

// Log backends.
const (
	LogBackendConsole = "console"
	LogBackendTFLog   = "tflog"
)

// LogSection configures CLI logging.
type LogSection struct {
	Level string `yaml:"level" default:"info"`
	// Backend receives reader, writer and conversion events: "console" for
	// human-readable stderr lines, "tflog" for hclog JSON on stderr.
	Backend string `yaml:"backend" default:"console"`
}

// Config represents a dirconv configuration file.
type Config struct {
	Version int `yaml:"version,omitempty"`

	Input  Endpoint `yaml:"input"`
	Output Endpoint `yaml:"output"`

	// LineEnding is "crlf" or "lf".
	LineEnding string `yaml:"line_ending" default:"crlf"`

	LDIF       LDIFSection       `yaml:"ldif"`
	DSML       DSMLSection       `yaml:"dsml"`
	Attributes AttributesSection `yaml:"attributes"`
	Log        LogSection        `yaml:"log"`
}

var lineEndings = map[string]string{
	"crlf": "\r\n",
	"lf":   "\n",
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := applyDefaults(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// applyDefaults fills unset fields. Paths are handled here because the
// defaults tag reserves "-" to mean "skip this field".
func applyDefaults(cfg *Config) error {
	if err := defaults.Set(cfg); err != nil {
		return err
	}
	if cfg.Input.Path == "" {
		cfg.Input.Path = StdStream
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = StdStream
	}
	return nil
}

// Load reads and parses a configuration file. Unknown keys are rejected and
// unset keys take their defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration YAML.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return cfg, nil
}

// Validate checks that every setting names something dirconv supports.
func (c *Config) Validate() error {
	if c.Version != 0 && c.Version != 1 {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	if _, err := c.Input.Descriptor(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if _, err := c.Output.Descriptor(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if c.Input.Path == "" {
		return errors.New("input.path must be set")
	}
	if c.Output.Path == "" {
		return errors.New("output.path must be set")
	}
	if _, ok := lineEndings[strings.ToLower(c.LineEnding)]; !ok {
		return fmt.Errorf("line_ending must be crlf or lf, got %q", c.LineEnding)
	}
	if c.LDIF.Separator == "" {
		return errors.New("ldif.separator must be set")
	}
	if !c.LDIF.NoFold && c.LDIF.FoldWidth < 2 {
		return fmt.Errorf("ldif.fold_width must be at least 2, got %d", c.LDIF.FoldWidth)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	switch strings.ToLower(c.Log.Backend) {
	case LogBackendConsole, LogBackendTFLog:
	default:
		return fmt.Errorf("log.backend must be console or tflog, got %q", c.Log.Backend)
	}
	return nil
}

// Options builds engine options from the configuration.
func (c *Config) Options(logger ldap.Logger) *format.Options {
	filters := format.NewFilters()
	if !c.Attributes.NoDefaultBinary {
		filters.RegisterBinary(format.DefaultBinaryAttributes...)
	}
	filters.RegisterBinary(c.Attributes.Binary...)
	filters.RegisterExclude(c.Attributes.Exclude...)
	filters.RegisterInclude(c.Attributes.Include...)

	return &format.Options{
		Separator:         c.LDIF.Separator,
		FoldWidth:         c.LDIF.FoldWidth,
		NoFold:            c.LDIF.NoFold,
		LineEnding:        lineEndings[strings.ToLower(c.LineEnding)],
		IncludeVersion:    c.LDIF.IncludeVersion,
		ValuesToFiles:     c.LDIF.ValuesToFiles,
		SpoolDir:          c.LDIF.SpoolDir,
		Indent:            c.DSML.Indent,
		KindAwareRequests: c.DSML.KindAwareRequests,
		RequestID:         c.DSML.RequestID,
		GenerateRequestID: c.DSML.GenerateRequestID,
		NoDefaultBinary:   c.Attributes.NoDefaultBinary,
		Filters:           filters,
		Logger:            logger,
	}
}
