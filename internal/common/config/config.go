// Package config provides configuration management for codedesk.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for codedesk.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Workspace     WorkspaceConfig     `mapstructure:"workspace"`
	Permissions   PermissionsConfig   `mapstructure:"permissions"`
	ToolServers   []ToolServerConfig  `mapstructure:"toolServers"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Issues        IssuesConfig        `mapstructure:"issues"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// NATSConfig holds NATS messaging configuration.
// When URL is empty the in-memory event bus is used instead.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// WorkspaceConfig holds the initial worktree configuration.
type WorkspaceConfig struct {
	// InitialPath is the worktree opened at startup.
	InitialPath string `mapstructure:"initialPath"`

	// Shell overrides the detected shell for terminal processes.
	Shell string `mapstructure:"shell"`
}

// PermissionsConfig holds tool approval policy configuration.
type PermissionsConfig struct {
	// Permissive enables the permissive preset at startup instead of the
	// conservative default.
	Permissive bool `mapstructure:"permissive"`

	// PresetFile optionally points at a YAML file with custom policy tables.
	PresetFile string `mapstructure:"presetFile"`
}

// ToolServerConfig describes one MCP tool server the tool gateway connects to.
type ToolServerConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// NotificationsConfig holds desktop notification configuration.
type NotificationsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	AppName string `mapstructure:"appName"`
}

// IssuesConfig holds issue tracker sync configuration.
type IssuesConfig struct {
	// Token is a GitHub personal access token. Empty disables issue sync.
	Token string `mapstructure:"token"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// Load reads configuration from file (optional) and environment variables.
// Environment variables use the CODEDESK_ prefix with underscores, e.g.
// CODEDESK_SERVER_PORT=8080.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CODEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("codedesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.codedesk")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8199)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "codedesk")
	v.SetDefault("nats.maxReconnects", 10)

	v.SetDefault("workspace.initialPath", "")
	v.SetDefault("workspace.shell", "")

	v.SetDefault("permissions.permissive", false)
	v.SetDefault("permissions.presetFile", "")

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.appName", "Codedesk")

	v.SetDefault("issues.token", "")
}
