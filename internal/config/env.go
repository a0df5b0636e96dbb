package config

import (
	"net"
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays well-known environment variables onto cfg.
func applyEnv(cfg *Config) {
	if port := getEnv("PORT", ""); port != "" {
		cfg.BasicConfig.ServerAddress = ":" + strings.TrimPrefix(port, ":")
	}
	if addr := getEnv("SOILCHAT_ADDR", ""); addr != "" {
		cfg.BasicConfig.ServerAddress = addr
	}
	if lvl := getEnv("LOG_LEVEL", ""); lvl != "" {
		cfg.BasicConfig.LogLevel = lvl
	}
	if proxies := getEnv("TRUSTED_PROXIES", ""); proxies != "" {
		cfg.BasicConfig.TrustedProxies = nil
		for _, p := range strings.Split(proxies, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.BasicConfig.TrustedProxies = append(cfg.BasicConfig.TrustedProxies, p)
			}
		}
	}
	if key := getEnv("SOILCHAT_API_KEY", ""); key != "" {
		cfg.BasicConfig.APIKey = key
	}

	if driver := getEnv("SOILCHAT_DB", ""); driver != "" {
		cfg.BasicConfig.Database = driver
	}
	if dsn := getEnv("DATABASE_DSN", ""); dsn != "" {
		if cfg.Databases == nil {
			cfg.Databases = make(map[string]DatabaseConfig)
		}
		db := cfg.Databases[cfg.BasicConfig.Database]
		db.DSN = dsn
		cfg.Databases[cfg.BasicConfig.Database] = db
	}

	if addr := getEnv("REDIS_ADDR", ""); addr != "" {
		if host, port, err := net.SplitHostPort(addr); err == nil {
			cfg.Redis.Host = host
			if p, err := strconv.Atoi(port); err == nil {
				cfg.Redis.Port = p
			}
			cfg.Redis.Enabled = true
		}
	}

	if key := getEnv("GEMINI_API_KEY", ""); key != "" {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]ProviderConfig)
		}
		p := cfg.Providers["gemini"]
		p.APIKey = key
		cfg.Providers["gemini"] = p
	}
	if backend := getEnv("LLM_BACKEND", ""); backend != "" {
		cfg.LLM.Backend = backend
	}
	if provider := getEnv("LLM_PROVIDER", ""); provider != "" {
		cfg.LLM.Provider = provider
	}

	if path := getEnv("FERTILITY_MODEL_PATH", ""); path != "" {
		cfg.Models.FertilityPath = path
	}
	if endpoint := getEnv("MODEL_ENDPOINT", ""); endpoint != "" {
		cfg.Models.ImageEndpoint = endpoint
	}
	if seed := getEnvInt64("EXTRACTION_SEED", 0); seed != 0 {
		cfg.Extraction.Seed = seed
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
