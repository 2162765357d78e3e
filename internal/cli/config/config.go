package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"

	"github.com/lvyanru/chatctl/pkg/logger"
)

const defaultServer = "http://localhost:8080"

// Config stores CLI configuration, persisted to ~/.chatctl/config.yaml.
// Every field can be overridden through CHATCTL_* environment variables.
type Config struct {
	Server      string        `mapstructure:"server" json:"server"`
	AccessToken string        `mapstructure:"access_token" json:"access_token,omitempty"`
	Username    string        `mapstructure:"username" json:"username,omitempty"`
	UserID      string        `mapstructure:"user_id" json:"user_id,omitempty"`
	Model       string        `mapstructure:"model" json:"model,omitempty"`
	Log         logger.Config `mapstructure:"log" json:"log,omitempty"`
}

// GetConfigPath returns the configuration file path (~/.chatctl/config.yaml)
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".chatctl", "config.yaml"), nil
}

// Load loads configuration from file and environment. A missing config file
// is not an error: defaults apply until the first login writes one.
func Load() (*Config, error) {
	configFile, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	v.SetDefault("server", defaultServer)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")

	v.SetEnvPrefix("CHATCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Server == "" {
		cfg.Server = defaultServer
	}

	return &cfg, nil
}

// Save saves configuration to file
func (c *Config) Save() error {
	configFile, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file holds the bearer token.
	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsAuthenticated checks if user is logged in
func (c *Config) IsAuthenticated() bool {
	return c.AccessToken != ""
}
