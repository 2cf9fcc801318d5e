package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultOrigin is the console service the client talks to.
	DefaultOrigin = "https://www.pythonanywhere.com"

	configDirName = ".anywhere-shell"
)

type Config struct {
	Account AccountConfig `mapstructure:"account"`
	Service ServiceConfig `mapstructure:"service"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
}

type AccountConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	APIToken string `mapstructure:"api_token"`
}

type ServiceConfig struct {
	Origin string `mapstructure:"origin"`
}

type SessionConfig struct {
	// Commands sent once the console is ready
	StartupCommands []string `mapstructure:"startup_commands"`

	// Zero waits for a cold-starting console without bound
	ReplayTimeout    time.Duration `mapstructure:"replay_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	CloseGrace       time.Duration `mapstructure:"close_grace"`

	Prompt      string `mapstructure:"prompt"`
	ExitKeyword string `mapstructure:"exit_keyword"`
}

// LogConfig sets the log level used when no -v/--debug flag is given.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	viper.SetConfigType("yaml")

	// An explicit --config file wins; SetConfigName would clear it
	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName("config")

		// Add config search paths
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/" + configDirName)
		viper.AddConfigPath("/etc/anywhere-shell/")
	}

	// Environment variable overrides
	viper.SetEnvPrefix("ANYWHERE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicitly bind environment variables for nested config
	// With SetEnvPrefix("ANYWHERE"), these become: ANYWHERE_ACCOUNT_USERNAME, ANYWHERE_ACCOUNT_API_TOKEN, etc.
	viper.BindEnv("account.username")
	viper.BindEnv("account.password")
	viper.BindEnv("account.api_token")
	viper.BindEnv("service.origin")
	viper.BindEnv("session.replay_timeout")
	viper.BindEnv("log.level")

	SetDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// SetDefaults registers the default value of every session and service key.
func SetDefaults() {
	viper.SetDefault("service.origin", DefaultOrigin)
	viper.SetDefault("session.startup_commands", []string{})
	viper.SetDefault("session.replay_timeout", time.Duration(0))
	viper.SetDefault("session.handshake_timeout", 45*time.Second)
	viper.SetDefault("session.close_grace", 50*time.Millisecond)
	viper.SetDefault("session.prompt", "$ ")
	viper.SetDefault("session.exit_keyword", "bye")
	viper.SetDefault("log.level", "warn")
}

// Validate checks the fields a console session cannot start without.
func (c *Config) Validate() error {
	if c.Account.Username == "" {
		return fmt.Errorf("account username is required")
	}
	if c.Account.APIToken == "" {
		return fmt.Errorf("account API token is required")
	}
	if c.Service.Origin == "" {
		return fmt.Errorf("service origin is required")
	}
	if c.Session.ExitKeyword == "" {
		return fmt.Errorf("session exit keyword must not be empty")
	}
	return nil
}

// Save writes the config to the user config file.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	return c.SaveTo(filepath.Join(homeDir, configDirName, "config.yaml"))
}

// SaveTo writes the config to configFile, creating its directory.
func (c *Config) SaveTo(configFile string) error {
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.SetConfigFile(configFile)

	// Update viper with current config values
	viper.Set("account.username", c.Account.Username)
	viper.Set("account.password", c.Account.Password)
	viper.Set("account.api_token", c.Account.APIToken)
	viper.Set("service.origin", c.Service.Origin)
	viper.Set("session.startup_commands", c.Session.StartupCommands)
	viper.Set("session.replay_timeout", c.Session.ReplayTimeout.String())

	return viper.WriteConfig()
}
