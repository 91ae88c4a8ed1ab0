// Package config loads Insight configuration from a YAML file with
// environment-variable overrides. Secrets (API keys) are only ever read
// from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Insight configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Reporting ReportingConfig `yaml:"reporting"`
	Store     StoreConfig     `yaml:"store"`
	Explore   ExploreConfig   `yaml:"explore"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// LLMConfig configures the completion collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"-"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// ReportingConfig configures the remote query execution service.
type ReportingConfig struct {
	BaseURL        string `yaml:"base_url"`
	OrgID          string `yaml:"org_id"`
	APIKey         string `yaml:"-"`
	Timeout        string `yaml:"timeout"`
	DefaultDataset string `yaml:"default_dataset"`
	DefaultLimit   int    `yaml:"default_limit"`
}

// StoreConfig configures conversation persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ExploreConfig configures the exploration engine.
type ExploreConfig struct {
	MaxProbes     int    `yaml:"max_probes"`
	ProbeRowLimit int    `yaml:"probe_row_limit"`
	HintCacheTTL  string `yaml:"hint_cache_ttl"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "insight",
		Version: "1.0.0",

		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        1000,
			CORSOrigins: []string{"*"},
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  "120s",
		},
		Reporting: ReportingConfig{
			BaseURL:        "https://api.zigment.ai",
			Timeout:        "30s",
			DefaultDataset: "zigment",
			DefaultLimit:   50,
		},
		Store: StoreConfig{
			DatabasePath: "data/chat_history.sqlite3",
		},
		Explore: ExploreConfig{
			MaxProbes:     3,
			ProbeRowLimit: 20,
			HintCacheTTL:  "10m",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; the environment is applied on top either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file. Keys are omitted: they
// never touch disk.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if key := os.Getenv("ZIGMENT_API_KEY"); key != "" {
		c.Reporting.APIKey = key
	}
	if org := os.Getenv("ZIGMENT_ORG_ID"); org != "" {
		c.Reporting.OrgID = org
	}
	if url := os.Getenv("REPORTING_API_URL"); url != "" {
		c.Reporting.BaseURL = url
	}
	if path := os.Getenv("CHAT_SQLITE_PATH"); path != "" {
		c.Store.DatabasePath = path
	}
	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		var parsed []string
		for _, part := range strings.Split(origins, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parsed = append(parsed, part)
			}
		}
		if len(parsed) > 0 {
			c.Server.CORSOrigins = parsed
		}
	}
}

// LLMTimeout returns the completion timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// ReportingTimeout returns the execution timeout as a duration.
func (c *Config) ReportingTimeout() time.Duration {
	d, err := time.ParseDuration(c.Reporting.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// HintCacheTTL returns the exploration hint cache TTL as a duration.
func (c *Config) HintCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Explore.HintCacheTTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}
