package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"jigctl/internal/app/errors"
)

// Config is the application-level (non-unit-file) configuration: where to
// watch, how long to wait before acting, and what environment to give child
// processes. It is read-only once constructed.
type Config struct {
	// ConfigDirs are the roots to scan and watch, supplied via -c/--config-dir.
	ConfigDirs []string `yaml:"config_dirs"`

	// PlainOutput forces plain (non-interactive) terminal output.
	PlainOutput bool `yaml:"plain_output"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Timeouts struct {
		Probe         time.Duration `yaml:"probe"`
		Process       time.Duration `yaml:"process"`
		Quiesce       time.Duration `yaml:"quiesce"`
		TerminateGrace time.Duration `yaml:"terminate_grace"`
	} `yaml:"timeouts"`

	Process struct {
		PATH       string `yaml:"path"`
		WorkingDir string `yaml:"working_dir"`
	} `yaml:"process"`

	Bus struct {
		SubscriberBuffer int `yaml:"subscriber_buffer"`
	} `yaml:"bus"`

	Version string
}

// DefaultConfig returns the configuration used when no config file is present.
func DefaultConfig() *Config {
	cfg := &Config{
		ConfigDirs: []string{},
		Version:    Version,
	}

	cfg.Logging.Level = LogLevel
	cfg.Logging.Format = LogFormat

	cfg.Timeouts.Probe = DefaultProbeTimeout
	cfg.Timeouts.Process = DefaultProcessTimeout
	cfg.Timeouts.Quiesce = DefaultQuiesceDelay
	cfg.Timeouts.TerminateGrace = DefaultTerminateGrace

	cfg.Process.PATH = DefaultChildPATH
	cfg.Process.WorkingDir = DefaultWorkDir

	cfg.Bus.SubscriberBuffer = DefaultBusSubscriberBuffer

	return cfg
}

// Load reads the optional config file (jigctl.yaml in the working directory)
// and an optional .env, merges them over DefaultConfig, and returns the
// result. It never fails because the file is absent — only when the file
// exists but cannot be read, is malformed, or fails validation.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	_ = godotenv.Load()

	data, err := os.ReadFile(ConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, errors.ErrFailedToReadConfig
	}

	if err := checkKnownTopLevelKeys(data); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("JIGCTL")
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.ErrFailedToReadConfig
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.ErrFailedToParseConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// knownTopLevelKeys mirrors Config's yaml tags.
var knownTopLevelKeys = map[string]bool{
	"config_dirs":  true,
	"plain_output": true,
	"logging":      true,
	"timeouts":     true,
	"process":      true,
	"bus":          true,
}

// checkKnownTopLevelKeys walks the document's top-level mapping and rejects
// any key Config doesn't recognise, catching typos viper would otherwise
// silently ignore.
func checkKnownTopLevelKeys(data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return errors.ErrFailedToParseConfig
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		if !knownTopLevelKeys[key] {
			return fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
		}
	}

	return nil
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.Timeouts.Probe <= 0 {
		return errors.ErrInvalidProbeTimeout
	}

	if c.Timeouts.Quiesce < 0 {
		return errors.ErrInvalidQuiesceDelay
	}

	if c.Timeouts.TerminateGrace < 0 {
		return errors.ErrInvalidTerminateGrace
	}

	return nil
}

// ApplyCLI overlays CLI-supplied options onto the loaded config.
func (c *Config) ApplyCLI(configDirs []string, plainOutput bool) {
	if len(configDirs) > 0 {
		c.ConfigDirs = configDirs
	}

	if plainOutput {
		c.PlainOutput = true
	}
}
