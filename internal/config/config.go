package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Bundle   BundleConfig   `mapstructure:"bundle"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Local    LocalConfig    `mapstructure:"local"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path         string `mapstructure:"path"`
	Migrations   string `mapstructure:"migrations"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// AssetsConfig points at the directory holding task/hint/answer images.
type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// BundleConfig controls the optional inbox watcher.
type BundleConfig struct {
	WatchDir  string `mapstructure:"watch_dir"`
	WatchMode string `mapstructure:"watch_mode"`
}

// SessionsConfig holds navigation session lifetime. A zero TTL keeps sessions forever.
type SessionsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// AdminConfig lists caller ids allowed to run operator commands.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// LocalConfig is the identity used by the terminal front end.
type LocalConfig struct {
	CallerID int64  `mapstructure:"caller_id"`
	Name     string `mapstructure:"name"`
}

// LogConfig selects the logger flavour ("dev" or "prod").
type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// MetricsConfig enables the prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// IsAdmin reports whether id is in the admin allow-list.
func (c Config) IsAdmin(id int64) bool {
	for _, a := range c.Admin.IDs {
		if a == id {
			return true
		}
	}
	return false
}

// Load reads configuration from file and env. Env var overrides use prefix OLYMPIADBOT_.
func Load() (Config, error) {
	v := viper.New()

	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "olympiadbot")
	v.SetDefault("database.path", filepath.Join(dataDir, "olympiadbot.db"))
	v.SetDefault("database.migrations", "internal/database/migrations")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("assets.dir", filepath.Join(dataDir, "images"))
	v.SetDefault("bundle.watch_dir", "")
	v.SetDefault("bundle.watch_mode", "replace")
	v.SetDefault("sessions.ttl", "0s")
	v.SetDefault("sessions.cleanup_interval", "10m")
	v.SetDefault("admin.ids", []int64{})
	v.SetDefault("local.caller_id", 1)
	v.SetDefault("local.name", os.Getenv("USER"))
	v.SetDefault("log.mode", "dev")
	v.SetDefault("metrics.addr", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("OLYMPIADBOT_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "olympiadbot"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("OLYMPIADBOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// the default location is optional, an explicit path is not
	if err := v.ReadInConfig(); err != nil && cfgPath != "" {
		return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 1
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("OLYMPIADBOT_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "olympiadbot", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.migrations", cfg.Database.Migrations)
	v.Set("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.Set("assets.dir", cfg.Assets.Dir)
	v.Set("bundle.watch_dir", cfg.Bundle.WatchDir)
	v.Set("bundle.watch_mode", cfg.Bundle.WatchMode)
	v.Set("sessions.ttl", cfg.Sessions.TTL.String())
	v.Set("sessions.cleanup_interval", cfg.Sessions.CleanupInterval.String())
	v.Set("admin.ids", cfg.Admin.IDs)
	v.Set("local.caller_id", cfg.Local.CallerID)
	v.Set("local.name", cfg.Local.Name)
	v.Set("log.mode", cfg.Log.Mode)
	v.Set("metrics.addr", cfg.Metrics.Addr)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
