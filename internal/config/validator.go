package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid setting.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return "config: " + e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "config: %d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidDrivers lists the supported store drivers.
func ValidDrivers() []string {
	return []string{DriverSQLite, DriverMemory, DriverHTTP}
}

// ValidLogLevels lists the accepted log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats lists the accepted log encodings.
func ValidLogFormats() []string {
	return []string{"console", "json"}
}

// Validate returns every invalid setting.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, message string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: message})
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			add("store.path", c.Store.Path, "required for the sqlite driver")
		}
	case DriverHTTP:
		u, err := url.Parse(c.Store.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("store.base_url", c.Store.BaseURL, "must be an absolute http(s) URL")
		}
		if c.Store.Timeout <= 0 {
			add("store.timeout", c.Store.Timeout, "must be positive")
		}
	case DriverMemory:
	default:
		add("store.driver", c.Store.Driver, "must be one of "+strings.Join(ValidDrivers(), ", "))
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		add("logging.level", c.Logging.Level, "must be one of "+strings.Join(ValidLogLevels(), ", "))
	}
	if !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		add("logging.format", c.Logging.Format, "must be one of "+strings.Join(ValidLogFormats(), ", "))
	}

	if c.Wizard.ReadinessDebounce < 0 {
		add("wizard.readiness_debounce", c.Wizard.ReadinessDebounce, "must not be negative")
	}
	if c.Wizard.AutosaveInterval < 0 {
		add("wizard.autosave_interval", c.Wizard.AutosaveInterval, "must not be negative")
	}
	return errs
}
