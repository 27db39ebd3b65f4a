package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the complete, read-only configuration of a storm run.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Run     RunConfig     `yaml:"run"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type APIConfig struct {
	URL         string        `yaml:"url"`
	Token       string        `yaml:"token"`
	Timeout     time.Duration `yaml:"timeout" default:"30s"`
	ContentType string        `yaml:"content_type" default:"PHOTO"`
}

type RunConfig struct {
	File             string   `yaml:"file"`
	Count            int      `yaml:"count"`
	URLMode          bool     `yaml:"url_mode" default:"false"`
	Workers          int      `yaml:"workers" default:"50"`
	AdditionalFields []string `yaml:"additional_fields"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"` // json or console
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Timeout:     30 * time.Second,
			ContentType: "PHOTO",
		},
		Run: RunConfig{
			Workers: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem with cfg at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.API.URL == "" {
		result = multierror.Append(result, errors.New("api url is required"))
	} else if u, err := url.Parse(c.API.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("api url %q must be an absolute http(s) url", c.API.URL))
	}
	if c.API.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("timeout must be positive, got %v", c.API.Timeout))
	}
	if c.Run.File == "" {
		result = multierror.Append(result, errors.New("file is required"))
	}
	if c.Run.Count < 1 {
		result = multierror.Append(result, fmt.Errorf("count must be at least 1, got %d", c.Run.Count))
	}
	if c.Run.Workers < 1 {
		result = multierror.Append(result, fmt.Errorf("workers must be at least 1, got %d", c.Run.Workers))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("log level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		result = multierror.Append(result, fmt.Errorf("log format must be json or console, got %q", c.Log.Format))
	}

	return result.ErrorOrNil()
}
