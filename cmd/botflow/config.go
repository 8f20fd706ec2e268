package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config holds all botflow server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath        string `json:"db_path"`
	LogLevel      string `json:"log_level"`
	CleanupCron   string `json:"cleanup_cron"`
	MaxRunAgeMin  int    `json:"max_run_age_minutes"`
	RetentionDays int    `json:"retention_days"`
}

func defaultConfig() Config {
	return Config{
		DBPath:        filepath.Join(botflowDir(), "botflow.db"),
		LogLevel:      "info",
		CleanupCron:   "*/10 * * * *",
		MaxRunAgeMin:  60,
		RetentionDays: 30,
	}
}

func botflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".botflow"
	}
	return filepath.Join(home, ".botflow")
}

func settingsPath() string {
	return filepath.Join(botflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("BOTFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BOTFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BOTFLOW_CLEANUP_CRON"); v != "" {
		cfg.CleanupCron = v
	}
	if v := os.Getenv("BOTFLOW_MAX_RUN_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MaxRunAgeMin = int(d.Minutes())
		}
	}
	if v := os.Getenv("BOTFLOW_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetentionDays = int(d.Hours() / 24)
		}
	}

	return cfg
}

// MaxRunAge returns the in-memory run retention as a duration.
func (c Config) MaxRunAge() time.Duration {
	return time.Duration(c.MaxRunAgeMin) * time.Minute
}

// Retention returns the archive retention as a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
