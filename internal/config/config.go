// Package config loads tool settings from an optional YAML file with
// environment overrides. Credentials are not configuration; they stay in the
// environment (see the auth package).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = ".m365.yaml"

// Config holds everything the CLI needs beyond credentials.
type Config struct {
	GraphBaseURL   string `yaml:"graph_base_url"`
	UserObjectID   string `yaml:"user_object_id"`
	CacheDir       string `yaml:"cache_dir"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Default returns the configuration used when no file and no overrides are
// present: production Graph endpoint, text logs at info, 60s HTTP timeout.
func Default() Config {
	return Config{
		GraphBaseURL:   "https://graph.microsoft.com/v1.0",
		CacheDir:       ".m365-cache",
		LogLevel:       "info",
		LogFormat:      "text",
		TimeoutSeconds: 60,
	}
}

// Load reads the YAML file at path (DefaultPath when empty) and applies
// environment overrides. A missing default file is fine; a missing explicit
// file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file; defaults apply.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"M365_GRAPH_URL":      &cfg.GraphBaseURL,
		"M365_USER_OBJECT_ID": &cfg.UserObjectID,
		"M365_CACHE_DIR":      &cfg.CacheDir,
		"M365_LOG_LEVEL":      &cfg.LogLevel,
		"M365_LOG_FORMAT":     &cfg.LogFormat,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

// Timeout returns the HTTP timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TokenCachePath is where the auth token cache lives.
func (c Config) TokenCachePath() string {
	return filepath.Join(c.CacheDir, "token.json")
}
