// Package config loads and stores crosslist's settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName names the per-user config directory.
const AppName = "crosslist"

// Defaults applied by Load when a field is unset.
const (
	DefaultProcessedLabel      = "crosslist-done"
	DefaultSettleSeconds       = 1
	DefaultImplicitWaitSeconds = 30
	DefaultLogLevel            = "info"
)

// ErrNotFound is returned when the config file does not exist.
var ErrNotFound = errors.New("config not found")

// InsufficientError lists required fields that are empty.
type InsufficientError struct {
	Missing []string
}

func (e *InsufficientError) Error() string {
	return "config is missing " + strings.Join(e.Missing, ", ")
}

// Config holds all configuration for crosslist.
type Config struct {
	SpreadsheetID       string   `yaml:"spreadsheet_id" json:"spreadsheet_id"`
	ClientID            string   `yaml:"client_id" json:"client_id"`
	ClientSecret        string   `yaml:"client_secret" json:"client_secret"`
	ProcessedLabel      string   `yaml:"processed_label" json:"processed_label"`
	SettleSeconds       float64  `yaml:"settle_seconds" json:"settle_seconds"`
	ImplicitWaitSeconds float64  `yaml:"implicit_wait_seconds" json:"implicit_wait_seconds"`
	ChromeArgs          []string `yaml:"chrome_args,omitempty" json:"chrome_args,omitempty"`
	LogLevel            string   `yaml:"log_level" json:"log_level"`
}

// Settle is the pause after activating a cancellation control.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.SettleSeconds * float64(time.Second))
}

// ImplicitWait bounds how long the browser waits for an element.
func (c *Config) ImplicitWait() time.Duration {
	return time.Duration(c.ImplicitWaitSeconds * float64(time.Second))
}

// SpreadsheetURL is the browser URL of the tracking sheet.
func (c *Config) SpreadsheetURL() string {
	return "https://docs.google.com/spreadsheets/d/" + c.SpreadsheetID
}

// Validate reports required fields that are empty.
func (c *Config) Validate() error {
	var missing []string
	if c.SpreadsheetID == "" {
		missing = append(missing, "spreadsheet_id")
	}
	if len(missing) > 0 {
		return &InsufficientError{Missing: missing}
	}
	return nil
}

// Dir returns the per-user application directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DefaultPath returns <appdir>/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// New returns a Config populated with defaults.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.ProcessedLabel == "" {
		c.ProcessedLabel = DefaultProcessedLabel
	}
	if c.SettleSeconds == 0 {
		c.SettleSeconds = DefaultSettleSeconds
	}
	if c.ImplicitWaitSeconds == 0 {
		c.ImplicitWaitSeconds = DefaultImplicitWaitSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Load reads the config file at path and applies defaults. It does not
// validate; callers that need a complete config call Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the config file and overrides it with environment
// variables, reading a .env file in the working directory first if present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, ErrNotFound) {
		// Environment alone can be enough.
		if os.Getenv("CROSSLIST_SPREADSHEET_ID") == "" {
			return nil, err
		}
		cfg = New()
	} else if err != nil {
		return nil, err
	}

	if v := os.Getenv("CROSSLIST_SPREADSHEET_ID"); v != "" {
		cfg.SpreadsheetID = v
	}
	if v := os.Getenv("CROSSLIST_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("CROSSLIST_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}
	return cfg, nil
}

// Save writes the config as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Fields lists the names accepted by Set.
func Fields() []string {
	names := make([]string, 0, len(setters))
	for k := range setters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var setters = map[string]func(*Config, string) error{
	"spreadsheet_id": func(c *Config, v string) error { c.SpreadsheetID = v; return nil },
	"client_id":      func(c *Config, v string) error { c.ClientID = v; return nil },
	"client_secret":  func(c *Config, v string) error { c.ClientSecret = v; return nil },
	"processed_label": func(c *Config, v string) error {
		if v == "" {
			return errors.New("processed_label cannot be empty")
		}
		c.ProcessedLabel = v
		return nil
	},
	"settle_seconds":        seconds(func(c *Config) *float64 { return &c.SettleSeconds }),
	"implicit_wait_seconds": seconds(func(c *Config) *float64 { return &c.ImplicitWaitSeconds }),
	"chrome_args": func(c *Config, v string) error {
		c.ChromeArgs = strings.Fields(v)
		return nil
	},
	"log_level": func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "warning", "error":
			c.LogLevel = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("unknown log level %q", v)
	},
}

func seconds(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("want a positive number of seconds, got %q", v)
		}
		*field(c) = f
		return nil
	}
}

// Set updates one field by its YAML name.
func (c *Config) Set(field, value string) error {
	set, ok := setters[field]
	if !ok {
		return fmt.Errorf("unknown field %q (valid: %s)", field, strings.Join(Fields(), ", "))
	}
	return set(c, value)
}
