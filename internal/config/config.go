package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Local panel API
	ListenPort int    `mapstructure:"PANEL_LISTEN_PORT"`
	DataDir    string `mapstructure:"PANEL_DATA_DIR"`

	// Remote backend
	BackendURL string `mapstructure:"PANEL_BACKEND_URL"`
	PushURL    string `mapstructure:"PANEL_PUSH_URL"`

	LogLevel string `mapstructure:"PANEL_LOG_LEVEL"`
	LogJSON  bool   `mapstructure:"PANEL_LOG_JSON"`
}

// Load reads configuration from .env, environment variables and an optional
// config.yaml in the working directory, falling back to defaults
func Load() (*Config, error) {
	// A missing .env file is fine; env vars still apply
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	homeDir, _ := os.UserHomeDir()

	v.SetDefault("PANEL_LISTEN_PORT", 8090)
	v.SetDefault("PANEL_DATA_DIR", filepath.Join(homeDir, ".homepanel"))
	v.SetDefault("PANEL_BACKEND_URL", "http://localhost:8000")
	v.SetDefault("PANEL_PUSH_URL", "ws://localhost:8000/ws")
	v.SetDefault("PANEL_LOG_LEVEL", "info")
	v.SetDefault("PANEL_LOG_JSON", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnsureDataDir creates the data directory if it doesn't exist
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// DatabasePath returns the path to the local cache database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "homepanel.db")
}
