package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. FORMWIZARD_STORE_DRIVER.
	EnvPrefix = "FORMWIZARD"
	// FileName is the config file looked up when no explicit path is given.
	FileName = "formwizard"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverHTTP   = "http"
)

// Config is the complete formwizard configuration.
type Config struct {
	Store       StoreConfig       `mapstructure:"store"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Wizard      WizardConfig      `mapstructure:"wizard"`
	Definitions DefinitionsConfig `mapstructure:"definitions"`
}

// StoreConfig selects the draft store.
type StoreConfig struct {
	// Driver is one of "sqlite", "memory" or "http".
	Driver string `mapstructure:"driver"`
	// Path is the sqlite database file.
	Path string `mapstructure:"path"`
	// BaseURL is the remote draft service for the http driver.
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig controls the CLI logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WizardConfig tunes controller timing.
type WizardConfig struct {
	ReadinessDebounce time.Duration `mapstructure:"readiness_debounce"`
	// AutosaveInterval of zero disables autosave.
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
}

// DefinitionsConfig points at extra step definitions loaded next to the
// embedded ones.
type DefinitionsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:  DriverSQLite,
			Path:    filepath.Join(ConfigDir(), "drafts.db"),
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Wizard: WizardConfig{
			ReadinessDebounce: 500 * time.Millisecond,
		},
	}
}

// SetDefaults registers every key on v so env overrides and Unmarshal see
// them.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("store.driver", defaults.Store.Driver)
	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("store.base_url", defaults.Store.BaseURL)
	v.SetDefault("store.timeout", defaults.Store.Timeout)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("wizard.readiness_debounce", defaults.Wizard.ReadinessDebounce)
	v.SetDefault("wizard.autosave_interval", defaults.Wizard.AutosaveInterval)

	v.SetDefault("definitions.dir", defaults.Definitions.Dir)
}

// NewViper returns a viper instance with defaults, environment overrides and
// the config file applied. An explicit path must exist; without one a missing
// formwizard.yaml is not an error.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals v and validates the result.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Load reads the configuration from path (or the default locations) and the
// environment.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// ConfigDir returns the per-user config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "formwizard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".formwizard"
	}
	return filepath.Join(home, ".config", "formwizard")
}
