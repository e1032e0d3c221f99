// Package config loads the optional YAML configuration used by the incremental CLI.
package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/incremental"
	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/git"
	"git.home.luguber.info/inful/incremental/internal/state"
)

// DefaultPath is the configuration file looked up when no path is given.
const DefaultPath = ".incremental.yaml"

// Config represents the CLI configuration.
type Config struct {
	Namespace    string            `yaml:"namespace,omitempty"`
	Mode         string            `yaml:"mode,omitempty"`          // timestamp | source-control
	TrackingFile string            `yaml:"tracking_file,omitempty"` // relative to root
	Root         string            `yaml:"root,omitempty"`          // defaults to the working directory
	Store        string            `yaml:"store,omitempty"`         // json | sqlite
	GitBackend   string            `yaml:"git_backend,omitempty"`   // cli | native
	MetricsFile  string            `yaml:"metrics_file,omitempty"`  // Prometheus textfile output
	Triggers     map[string]string `yaml:"triggers,omitempty"`      // passed through, never executed
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configPath. When required is false a missing file yields Default().
// Environment files next to the config are loaded first so ${VAR} references resolve.
func Load(configPath string, required bool) (*Config, error) {
	if err := loadEnvFiles(filepath.Dir(configPath)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return Default(), nil
		}
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	return Parse(data, configPath)
}

// Parse decodes YAML content and expands ${VAR} references in the scalar settings.
// Trigger commands are kept verbatim.
func Parse(data []byte, source string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").
			WithContext("path", source).
			Build()
	}

	cfg.expandEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandEnv() {
	for _, field := range []*string{
		&c.Namespace, &c.Mode, &c.TrackingFile, &c.Root,
		&c.Store, &c.GitBackend, &c.MetricsFile,
	} {
		*field = os.ExpandEnv(*field)
	}
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = string(incremental.ModeTimestamp)
	}
	if c.TrackingFile == "" {
		c.TrackingFile = state.DefaultTrackingFile
	}
	if c.Store == "" {
		c.Store = string(state.StoreJSON)
	}
	if c.GitBackend == "" {
		c.GitBackend = string(git.BackendCLI)
	}
	if c.Triggers == nil {
		c.Triggers = map[string]string{}
	}
}

// Validate checks enumerated values. The namespace is not required here because the
// command line may supply it.
func (c *Config) Validate() error {
	if _, err := incremental.ParseMode(c.Mode); err != nil {
		return configError("mode", c.Mode, err)
	}
	if _, err := state.ParseStoreKind(c.Store); err != nil {
		return configError("store", c.Store, err)
	}
	if _, err := git.ParseBackend(c.GitBackend); err != nil {
		return configError("git_backend", c.GitBackend, err)
	}
	for name, command := range c.Triggers {
		if name == "" || command == "" {
			return errors.ConfigError("trigger entries need a name and a command").
				WithContext("trigger", name).
				Build()
		}
	}
	return nil
}

func configError(field, value string, cause error) error {
	return errors.WrapError(cause, errors.CategoryConfig, "invalid configuration value").
		WithContext("field", field).
		WithContext("value", value).
		Build()
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Config{
		Namespace:    "docs",
		Mode:         string(incremental.ModeTimestamp),
		TrackingFile: state.DefaultTrackingFile,
		Store:        string(state.StoreJSON),
		GitBackend:   string(git.BackendCLI),
		Triggers: map[string]string{
			"post-build": "make publish",
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
