// CLAUDE:SUMMARY Configuration structs (retry, schedule, watch, sinks, http, log) and YAML loader for the polwatch service.
package monitor

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Sink types accepted in SinkConfig.Type.
const (
	SinkWebhook = "webhook"
	SinkStdout  = "stdout"
	SinkMemory  = "memory"
)

// Config holds all polwatch configuration.
type Config struct {
	DBPath     string         `yaml:"db_path"`
	Policies   []string       `yaml:"policies"`
	Retry      RetryConfig    `yaml:"retry"`
	BatchPause time.Duration  `yaml:"batch_pause"`
	Schedule   ScheduleConfig `yaml:"schedule"`
	Watch      WatchConfig    `yaml:"watch"`
	Sinks      []SinkConfig   `yaml:"sinks"`
	HTTP       HTTPConfig     `yaml:"http"`
	Log        LogConfig      `yaml:"log"`
}

// RetryConfig controls the step runner.
type RetryConfig struct {
	// MaxRetries follows the first attempt. Default: 3.
	MaxRetries int `yaml:"max_retries"`
	// BackoffUnit is multiplied by 2^retry. Default: 1s.
	BackoffUnit time.Duration `yaml:"backoff_unit"`
}

// ScheduleConfig controls the periodic batch check.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// WatchConfig controls checking on snapshot arrival.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
	// Interval is the store polling period. Default: 5s.
	Interval time.Duration `yaml:"interval"`
	// Debounce is the quiet period before arrivals are checked. Default: 2s;
	// negative disables it.
	Debounce time.Duration `yaml:"debounce"`
}

// SinkConfig declares one downstream backend. Several entries sharing a
// Name are fanned out under that role.
type SinkConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	URL         string `yaml:"url"`
	IncludeDiff bool   `yaml:"include_diff"`
	// RatePerMinute paces webhook deliveries. 0 means unpaced.
	RatePerMinute int `yaml:"rate_per_minute"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "polwatch.db"
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.BackoffUnit <= 0 {
		c.Retry.BackoffUnit = time.Second
	}
	if c.BatchPause <= 0 {
		c.BatchPause = time.Second
	}
	if c.Schedule.Interval <= 0 {
		c.Schedule.Interval = 24 * time.Hour
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 5 * time.Second
	}
	if c.Watch.Debounce < 0 {
		c.Watch.Debounce = 0
	} else if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 2 * time.Second
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Name: SinkMemory, Type: SinkMemory}}
	}
	for i := range c.Sinks {
		if c.Sinks[i].Name == "" {
			c.Sinks[i].Name = c.Sinks[i].Type
		}
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8086"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) validate() error {
	for _, s := range c.Sinks {
		switch s.Type {
		case SinkWebhook:
			if s.URL == "" {
				return fmt.Errorf("%w: sink %q: webhook needs a url", ErrInvalidInput, s.Name)
			}
			u, err := url.Parse(s.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("%w: sink %q: webhook url must be absolute http(s)", ErrInvalidInput, s.Name)
			}
		case SinkStdout, SinkMemory:
		default:
			return fmt.Errorf("%w: sink %q: unknown type %q", ErrInvalidInput, s.Name, s.Type)
		}
	}
	return nil
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("monitor: parse %s: %w", path, err)
	}
	return cfg, nil
}
