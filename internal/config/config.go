package config

import (
	"fmt"
	"time"

	"bulletin-scraper/internal/scraper"
)

// Source kinds accepted by source.kind.
const (
	SourceRod  = "rod"
	SourceHTTP = "http"
	SourceFile = "file"
)

type Config struct {
	Source              SourceConfig        `yaml:"source"`
	Rod                 RodConfig           `yaml:"rod"`
	Backoff             BackoffConfig       `yaml:"backoff"`
	RobotsCacheTTLHours int                 `yaml:"robots_cache_ttl_hours"`
	HTTP                HttpConfig          `yaml:"http"`
	RateLimit           RateLimitConfig     `yaml:"rate_limit"`
	Selectors           scraper.Selectors   `yaml:"selectors"`
	SelectorsFile       string              `yaml:"selectors_file"`
	Output              OutputConfig        `yaml:"output"`
	Observability       ObservabilityConfig `yaml:"observability"`
}

type SourceConfig struct {
	Kind string `yaml:"kind"`
}

type RodConfig struct {
	ChromePath       string `yaml:"chrome_path"`
	ControlURL       string `yaml:"control_url"`
	Headless         bool   `yaml:"headless"`
	PageTimeoutS     int    `yaml:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s"`
	LazyLoadDelayS   int    `yaml:"lazy_load_delay_s"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type HttpConfig struct {
	UserAgent                 string `yaml:"user_agent"`
	AcceptLanguage            string `yaml:"accept_language"`
	ConnectTimeoutMS          int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS            int    `yaml:"total_timeout_ms"`
	MaxRetries                int    `yaml:"max_retries"`
	MaxIdleConnections        int    `yaml:"max_idle_connections"`
	MaxIdleConnectionsPerHost int    `yaml:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int    `yaml:"idle_connection_timeout_s"`
	RespectRobots             bool   `yaml:"respect_robots"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type OutputConfig struct {
	Path    string `yaml:"path"`
	Console bool   `yaml:"console"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

// Default returns the configuration used when no config file exists. It
// reproduces the reference behaviour: headless browser, commits.txt, console
// mirror on.
func Default() *Config {
	return &Config{
		Source: SourceConfig{Kind: SourceRod},
		Rod: RodConfig{
			Headless:         true,
			PageTimeoutS:     60,
			WaitLoadTimeoutS: 30,
		},
		Backoff: BackoffConfig{
			MinMS:     250,
			MaxMS:     4000,
			JitterPct: 20,
		},
		RobotsCacheTTLHours: 12,
		HTTP: HttpConfig{
			UserAgent:                 "bulletin-scraper/1.0",
			AcceptLanguage:            "en-US,en;q=0.9",
			ConnectTimeoutMS:          10000,
			TotalTimeoutMS:            30000,
			MaxRetries:                3,
			MaxIdleConnections:        100,
			MaxIdleConnectionsPerHost: 10,
			IdleConnectionTimeoutS:    90,
			RespectRobots:             true,
		},
		RateLimit: RateLimitConfig{
			MaxConcurrentPerHost: 2,
			RPM:                  60,
		},
		Selectors: scraper.DefaultSelectors(),
		Output: OutputConfig{
			Path:    "commits.txt",
			Console: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogMaxSizeMB:  10,
			LogMaxBackups: 3,
			LogMaxAgeDays: 28,
		},
	}
}

// Validation
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceRod, SourceHTTP, SourceFile:
	default:
		return fmt.Errorf("source.kind must be one of rod, http, file: got %q", c.Source.Kind)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS < c.Backoff.MinMS {
		return fmt.Errorf("backoff.max_ms must be >= backoff.min_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.Source.Kind == SourceRod {
		if c.Rod.PageTimeoutS <= 0 {
			return fmt.Errorf("rod.page_timeout_s must be > 0")
		}
		if c.Rod.WaitLoadTimeoutS <= 0 {
			return fmt.Errorf("rod.wait_load_timeout_s must be > 0")
		}
		if c.Rod.LazyLoadDelayS < 0 {
			return fmt.Errorf("rod.lazy_load_delay_s must be >= 0")
		}
	}
	if err := c.Selectors.Validate(); err != nil {
		return fmt.Errorf("selectors: %w", err)
	}
	return nil
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}

func (c *Config) GetRodLazyLoadDelay() time.Duration {
	return time.Duration(c.Rod.LazyLoadDelayS) * time.Second
}
