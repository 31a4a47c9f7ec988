// Package config loads runtime settings from the environment (with an
// optional .env file) and the credentials YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/KevinWangQQ/youtube-influencer-finder/internal/credential"
)

// DefaultQuotaLimit is the YouTube Data API daily allowance for a standard
// project, in quota units.
const DefaultQuotaLimit int64 = 10_000

// Config is the full runtime configuration. Zero values never survive
// Load; every field carries a default.
type Config struct {
	ListenAddr string
	LogLevel   string
	LogFormat  string // "text" or "json"

	RedisURL        string
	CacheTTL        time.Duration
	CacheMaxEntries int

	StatePath       string // sqlite file for credential bookkeeping
	CredentialsFile string // yaml list of API keys
	APIKeys         string // comma-separated fallback for the file

	GeminiAPIKey string
	GeminiModel  string

	UpstreamTimeout time.Duration
	QuotaLimit      int64
}

// Load reads the environment, layering an optional .env file underneath.
// Missing optional values fall back to defaults; a config without any
// credential source is an error.
func Load() (*Config, error) {
	// Absent .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:      envStr("FINDER_LISTEN_ADDR", ":8080"),
		LogLevel:        envStr("FINDER_LOG_LEVEL", "info"),
		LogFormat:       envStr("FINDER_LOG_FORMAT", "text"),
		RedisURL:        os.Getenv("FINDER_REDIS_URL"),
		CacheTTL:        envDuration("FINDER_CACHE_TTL", 30*time.Minute),
		CacheMaxEntries: envInt("FINDER_CACHE_MAX_ENTRIES", 1000),
		StatePath:       envStr("FINDER_STATE_PATH", "finder.db"),
		CredentialsFile: os.Getenv("FINDER_CREDENTIALS_FILE"),
		APIKeys:         os.Getenv("YOUTUBE_API_KEYS"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     envStr("GEMINI_MODEL", "gemini-2.5-flash"),
		UpstreamTimeout: envDuration("FINDER_UPSTREAM_TIMEOUT", 15*time.Second),
		QuotaLimit:      envInt64("FINDER_QUOTA_LIMIT", DefaultQuotaLimit),
	}

	if cfg.CredentialsFile == "" && cfg.APIKeys == "" {
		return nil, fmt.Errorf("config: no credential source: set FINDER_CREDENTIALS_FILE or YOUTUBE_API_KEYS")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("config: FINDER_CACHE_TTL must be positive, got %v", cfg.CacheTTL)
	}
	return cfg, nil
}

// credentialsFile is the YAML layout of FINDER_CREDENTIALS_FILE.
type credentialsFile struct {
	Credentials []credential.Credential `yaml:"credentials"`
}

// Credentials resolves the configured credential set: the YAML file when
// present, otherwise one credential per comma-separated key in
// YOUTUBE_API_KEYS.
func (c *Config) Credentials() ([]credential.Credential, error) {
	if c.CredentialsFile != "" {
		data, err := os.ReadFile(c.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("config: read credentials file: %w", err)
		}
		var f credentialsFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("config: parse credentials file: %w", err)
		}
		if len(f.Credentials) == 0 {
			return nil, fmt.Errorf("config: credentials file %s holds no credentials", c.CredentialsFile)
		}
		for i := range f.Credentials {
			cred := &f.Credentials[i]
			if cred.Key == "" {
				return nil, fmt.Errorf("config: credential %q has no key", cred.ID)
			}
			if cred.ID == "" {
				cred.ID = fmt.Sprintf("key-%d", i+1)
			}
			if cred.QuotaLimit <= 0 {
				cred.QuotaLimit = c.QuotaLimit
			}
		}
		return f.Credentials, nil
	}

	var out []credential.Credential
	for i, key := range strings.Split(c.APIKeys, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out = append(out, credential.Credential{
			ID:         fmt.Sprintf("key-%d", i+1),
			Label:      fmt.Sprintf("env key %d", i+1),
			Key:        key,
			QuotaLimit: c.QuotaLimit,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("config: YOUTUBE_API_KEYS holds no keys")
	}
	return out, nil
}

func envStr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(name string, def int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
