package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultPath = "config.json"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
	LLM         LLMConfig                 `json:"llm" yaml:"llm"`
	Providers   map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Models      ModelsConfig              `json:"models" yaml:"models"`
	Workers     WorkerConfig              `json:"workers" yaml:"workers"`
	RateLimit   RateLimitConfig           `json:"rate_limit" yaml:"rate_limit"`
	Archive     ArchiveConfig             `json:"archive" yaml:"archive"`
	Extraction  ExtractionConfig          `json:"extraction" yaml:"extraction"`
}

type BasicConfig struct {
	ServerAddress string   `json:"server_address" yaml:"server_address"`
	Database      string   `json:"database" yaml:"database"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	MaxBodyBytes  int64    `json:"max_body_bytes" yaml:"max_body_bytes"`
	APIKey        string   `json:"api_key" yaml:"api_key"`
	HistoryLimit  int      `json:"history_limit" yaml:"history_limit"`

	// TrustedProxies lists peers whose X-Forwarded-For is believed. Empty
	// means the client IP is always the TCP peer.
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	Username   string `json:"username" yaml:"username"`
	Password   string `json:"password" yaml:"password"`
	DB         int    `json:"db" yaml:"db"`
	TTLSeconds int    `json:"ttl_seconds" yaml:"ttl_seconds"`
}

// LLMConfig selects how the language model is reached. Backend "genai" talks
// to Gemini directly; "eino" goes through the eino chat model of Provider.
type LLMConfig struct {
	Backend  string `json:"backend" yaml:"backend"`
	Provider string `json:"provider" yaml:"provider"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

type ModelsConfig struct {
	FertilityPath       string `json:"fertility_path" yaml:"fertility_path"`
	ImageEndpoint       string `json:"image_endpoint" yaml:"image_endpoint"`
	ImageModelName      string `json:"image_model_name" yaml:"image_model_name"`
	ImageTimeoutSeconds int    `json:"image_timeout_seconds" yaml:"image_timeout_seconds"`
}

type WorkerConfig struct {
	MinWorkers         int `json:"min_workers" yaml:"min_workers"`
	MaxWorkers         int `json:"max_workers" yaml:"max_workers"`
	QueueSize          int `json:"queue_size" yaml:"queue_size"`
	IdleTimeoutSeconds int `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled" yaml:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int  `json:"burst" yaml:"burst"`
}

// ArchiveConfig controls where uploaded images are kept. An empty backend
// disables archiving.
type ArchiveConfig struct {
	Backend         string `json:"backend" yaml:"backend"`
	Dir             string `json:"dir" yaml:"dir"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

type ExtractionConfig struct {
	Seed int64 `json:"seed" yaml:"seed"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress: ":5000",
			Database:      "sqlite3",
			LogLevel:      "info",
			CORSOrigins:   []string{"*"},
			MaxBodyBytes:  16 << 20,
			HistoryLimit:  50,
		},
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "chat_history.db"},
		},
		Redis: RedisConfig{Host: "127.0.0.1", Port: 6379, TTLSeconds: 300},
		LLM:   LLMConfig{Backend: "genai", Provider: "gemini"},
		Providers: map[string]ProviderConfig{
			"gemini": {Model: "gemini-2.5-flash"},
		},
		Models: ModelsConfig{
			FertilityPath:       "random_forest.json",
			ImageModelName:      "soil_type",
			ImageTimeoutSeconds: 60,
		},
		Workers: WorkerConfig{
			MinWorkers:         2,
			MaxWorkers:         8,
			QueueSize:          64,
			IdleTimeoutSeconds: 60,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 30, Burst: 10},
		Archive:   ArchiveConfig{Dir: "./data/uploads"},
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error; built-in defaults are used instead.
// Environment variables are applied last.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = defaultPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	raw, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := decode(absPath, raw, cfg); err != nil {
			return nil, err
		}
		resolveRelative(cfg, filepath.Dir(absPath))
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decode(path string, raw []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

// resolveRelative anchors file paths in the config to the config's directory.
func resolveRelative(cfg *Config, base string) {
	for name, db := range cfg.Databases {
		if isSQLite(name) && db.DSN != "" && db.DSN != ":memory:" && !strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(base, db.DSN)
			cfg.Databases[name] = db
		}
	}
	if p := cfg.Models.FertilityPath; p != "" && !filepath.IsAbs(p) {
		cfg.Models.FertilityPath = filepath.Join(base, p)
	}
}

// Validate checks that required configuration fields are set.
func (c *Config) Validate() error {
	if c.BasicConfig.ServerAddress == "" {
		return errors.New("server_address cannot be empty")
	}
	if c.BasicConfig.Database == "" {
		return errors.New("database cannot be empty")
	}
	if _, ok := c.Databases[c.BasicConfig.Database]; !ok {
		return fmt.Errorf("database config for %s not found", c.BasicConfig.Database)
	}
	switch c.LLM.Backend {
	case "genai", "eino":
	default:
		return fmt.Errorf("unsupported llm backend: %s", c.LLM.Backend)
	}
	switch c.Archive.Backend {
	case "", "local", "s3":
	default:
		return fmt.Errorf("unsupported archive backend: %s", c.Archive.Backend)
	}
	if c.Archive.Backend == "s3" && c.Archive.Bucket == "" {
		return errors.New("archive bucket must be configured for s3")
	}
	if c.Workers.MaxWorkers < 0 || c.Workers.QueueSize < 0 {
		return errors.New("worker sizes cannot be negative")
	}
	return nil
}

// ActiveProvider returns the provider used by the LLM gateway.
func (c *Config) ActiveProvider() (string, ProviderConfig) {
	name := c.LLM.Provider
	if name == "" {
		name = "gemini"
	}
	return name, c.Providers[name]
}

func isSQLite(name string) bool {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}
