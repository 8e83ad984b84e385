// Package config loads agent configuration from flock.yaml, environment
// variables, and defaults, in that order of increasing precedence for env
// over file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full agent configuration.
type Config struct {
	// DataDir holds the database, state file, logs, and audio spool.
	DataDir string `mapstructure:"data_dir"`

	Remote struct {
		// BaseURL is the REST API root.
		BaseURL string `mapstructure:"base_url"`
		// APIKey is the project API key.
		APIKey string `mapstructure:"api_key"`
		// BearerToken is this device's session token.
		BearerToken string `mapstructure:"bearer_token"`
		// Timeout bounds each request.
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"remote"`

	Blob struct {
		Endpoint      string `mapstructure:"endpoint"`
		Bucket        string `mapstructure:"bucket"`
		AccessKey     string `mapstructure:"access_key"`
		SecretKey     string `mapstructure:"secret_key"`
		UseSSL        bool   `mapstructure:"use_ssl"`
		PublicBaseURL string `mapstructure:"public_base_url"`
	} `mapstructure:"blob"`

	Sync struct {
		// ProbeInterval is the connectivity probe period.
		ProbeInterval time.Duration `mapstructure:"probe_interval"`
		// Debounce suppresses reconnect triggers on flapping links.
		Debounce time.Duration `mapstructure:"debounce"`
		// MemberPageSize caps rows per directory refresh page.
		MemberPageSize int `mapstructure:"member_page_size"`
	} `mapstructure:"sync"`

	Push struct {
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		BearerToken string `mapstructure:"bearer_token"`
		// GatewayURL overrides the Expo endpoint, for tests ("" = production).
		GatewayURL string `mapstructure:"gateway_url"`
	} `mapstructure:"push"`

	Dashboard struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"dashboard"`

	Log struct {
		// File is the log path ("" = stderr only).
		File string `mapstructure:"file"`
		// MaxSizeMB rotates the log after this size.
		MaxSizeMB int `mapstructure:"max_size_mb"`
		// MaxBackups keeps this many rotated files.
		MaxBackups int `mapstructure:"max_backups"`
	} `mapstructure:"log"`

	// MenuFile is the navigation tree YAML path ("" = built-in default).
	MenuFile string `mapstructure:"menu_file"`
}

// DatabasePath returns the SQLite file location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "flock.db")
}

// StatePath returns the persisted app state location under DataDir.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.toml")
}

// SpoolDir returns the audio spool directory under DataDir.
func (c *Config) SpoolDir() string {
	return filepath.Join(c.DataDir, "spool")
}

// Load reads configuration. path names an explicit config file; when
// empty, flock.yaml is searched in the working directory and
// ~/.config/flock. Environment variables use the FLOCK_ prefix with
// underscores, e.g. FLOCK_REMOTE_BASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("flock")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "flock"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file anywhere; defaults plus env carry the day.
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	dataDir := ".flock"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".flock")
	}
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("sync.probe_interval", 30*time.Second)
	v.SetDefault("sync.debounce", 2*time.Second)
	v.SetDefault("sync.member_page_size", 500)
	v.SetDefault("push.host", "localhost")
	v.SetDefault("push.port", 8790)
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8791)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}
