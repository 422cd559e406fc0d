// Package config loads panelbot settings from defaults, a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/blang/semver"
	"github.com/go-playground/validator/v10"
	"github.com/panelbot/panelbot/internal/panel"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is tried before the bare variable name.
const EnvPrefix = "PANELBOT_"

// Defaults
const (
	DefaultHost       = panel.DefaultHost
	DefaultAPIVersion = "2"
	DefaultListen     = ":45877"
	DefaultLogLevel   = "info"
)

type Config struct {
	PanelHost   string `yaml:"panel_host" validate:"required,http_url"`
	PanelAPIKey string `yaml:"panel_api_key"`
	VerifySSL   bool   `yaml:"verify_ssl"`
	APIVersion  string `yaml:"api_version" validate:"required,semver_tolerant"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
	Listen      string `yaml:"listen" validate:"required"`
	Keys        string `yaml:"keys"`
	KeysFile    string `yaml:"keys_file"`
	NotifyURL   string `yaml:"notify_url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("semver_tolerant", func(fl validator.FieldLevel) bool {
		_, err := semver.ParseTolerant(fl.Field().String())
		return err == nil
	})
	return v
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		PanelHost:  DefaultHost,
		APIVersion: DefaultAPIVersion,
		LogLevel:   DefaultLogLevel,
		Listen:     DefaultListen,
	}
}

// GetEnv retrieves an environment variable with a "PANELBOT_" prefix, or
// falls back to the unprefixed key.
func GetEnv(key string) (value string, exists bool) {
	if value, exists = os.LookupEnv(EnvPrefix + key); exists {
		return value, exists
	}
	return os.LookupEnv(key)
}

// Load returns the defaults overridden by the YAML file at path (skipped when
// path is empty) and then by the environment. The result is not validated so
// callers can apply flags first.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides copies every set environment variable onto cfg.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"PANEL_HOST":    &cfg.PanelHost,
		"PANEL_API_KEY": &cfg.PanelAPIKey,
		"API_VERSION":   &cfg.APIVersion,
		"LOG_LEVEL":     &cfg.LogLevel,
		"LISTEN":        &cfg.Listen,
		"KEYS":          &cfg.Keys,
		"KEYS_FILE":     &cfg.KeysFile,
		"NOTIFY_URL":    &cfg.NotifyURL,
	}
	for key, dst := range strs {
		if v, ok := GetEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := GetEnv("VERIFY_SSL"); ok {
		verify, err := cast.ToBoolE(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid VERIFY_SSL %q: %w", v, err)
		}
		cfg.VerifySSL = verify
	}
	return nil
}

// Validate checks the merged settings.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		messages := make([]string, len(fieldErrs))
		for i, e := range fieldErrs {
			messages[i] = formatValidationMessage(e)
		}
		return fmt.Errorf("config validation failed: %s", strings.Join(messages, "; "))
	}
	return nil
}

// formatValidationMessage creates human-readable error messages
func formatValidationMessage(e validator.FieldError) string {
	field := yamlName(e.StructField())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "http_url":
		return fmt.Sprintf("%s must be an http(s) URL, got %q", field, e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, e.Param(), e.Value())
	case "semver_tolerant":
		return fmt.Sprintf("%s must be a version such as 2 or v2.0, got %q", field, e.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}

func yamlName(structField string) string {
	switch structField {
	case "PanelHost":
		return "panel_host"
	case "APIVersion":
		return "api_version"
	case "LogLevel":
		return "log_level"
	case "Listen":
		return "listen"
	default:
		return strings.ToLower(structField)
	}
}

// Version parses APIVersion, accepting forms like "2", "v2" and "2.0".
func (c *Config) Version() (semver.Version, error) {
	return semver.ParseTolerant(c.APIVersion)
}

// AuthorizedKeys returns the configured public keys, reading KeysFile when
// Keys is empty.
func (c *Config) AuthorizedKeys() (string, error) {
	if c.Keys != "" {
		return c.Keys, nil
	}
	if c.KeysFile == "" {
		return "", errors.New("no public keys configured, set KEYS or KEYS_FILE")
	}
	data, err := os.ReadFile(c.KeysFile)
	if err != nil {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	return string(data), nil
}

// ApplyLogLevel sets the default slog level.
func ApplyLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case "warn":
		slog.SetLogLoggerLevel(slog.LevelWarn)
	case "error":
		slog.SetLogLoggerLevel(slog.LevelError)
	default:
		slog.SetLogLoggerLevel(slog.LevelInfo)
	}
}
