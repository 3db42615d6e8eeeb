// Package config handles daemon configuration file management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides (GALAXYD_DISCORD_APPID, ...)
const EnvPrefix = "GALAXYD"

// DefaultAppID is the Discord application the presence is published under
const DefaultAppID = "1203039006846361762"

// Config represents the daemon configuration
type Config struct {
	// LibraryPaths is a list of directories the GUI has opened before
	LibraryPaths []string `mapstructure:"libraryPaths" yaml:"libraryPaths" json:"libraryPaths"`

	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Discord DiscordConfig `mapstructure:"discord" yaml:"discord" json:"discord"`
	MPRIS   MPRISConfig   `mapstructure:"mpris" yaml:"mpris" json:"mpris"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt" json:"mqtt"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
}

// ServerConfig contains command surface settings
type ServerConfig struct {
	// SocketPath for the GUI command socket (default: /tmp/galaxyd-<uid>.sock)
	SocketPath string `mapstructure:"socketPath" yaml:"socketPath" json:"socketPath"`

	// HTTPAddr enables the HTTP API when non-empty (e.g. 127.0.0.1:7870)
	HTTPAddr string `mapstructure:"httpAddr" yaml:"httpAddr" json:"httpAddr"`
}

// DiscordConfig contains rich presence settings
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	AppID      string `mapstructure:"appId" yaml:"appId" json:"appId"`
	LargeImage string `mapstructure:"largeImage" yaml:"largeImage" json:"largeImage"`

	// RetryAttempts and RetryInterval bound the startup connection loop
	RetryAttempts int           `mapstructure:"retryAttempts" yaml:"retryAttempts" json:"retryAttempts"`
	RetryInterval time.Duration `mapstructure:"retryInterval" yaml:"retryInterval" json:"retryInterval"`

	// CallTimeout bounds every connect/update call on the transport
	CallTimeout time.Duration `mapstructure:"callTimeout" yaml:"callTimeout" json:"callTimeout"`

	// UpdatesPerWindow activity updates are allowed per UpdateWindow
	UpdatesPerWindow int           `mapstructure:"updatesPerWindow" yaml:"updatesPerWindow" json:"updatesPerWindow"`
	UpdateWindow     time.Duration `mapstructure:"updateWindow" yaml:"updateWindow" json:"updateWindow"`
}

// MPRISConfig toggles the Linux media session mirror
type MPRISConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// MQTTConfig configures the optional MQTT now-playing mirror
type MQTTConfig struct {
	Broker   string `mapstructure:"broker" yaml:"broker" json:"broker"`
	Topic    string `mapstructure:"topic" yaml:"topic" json:"topic"`
	ClientID string `mapstructure:"clientId" yaml:"clientId" json:"clientId"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" json:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LibraryPaths: []string{},
		Server: ServerConfig{
			SocketPath: DefaultSocketPath(),
		},
		Discord: DiscordConfig{
			Enabled:          true,
			AppID:            DefaultAppID,
			LargeImage:       "galaxy",
			RetryAttempts:    10,
			RetryInterval:    2 * time.Second,
			CallTimeout:      5 * time.Second,
			UpdatesPerWindow: 5,
			UpdateWindow:     20 * time.Second,
		},
		MPRIS: MPRISConfig{
			Enabled: true,
		},
		MQTT: MQTTConfig{
			Topic:    "galaxyd/now-playing",
			ClientID: "galaxyd",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultSocketPath returns the per-user command socket path
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("galaxyd-%d.sock", os.Getuid()))
}

// DefaultConfigDir returns ~/.config/galaxyd (or the platform equivalent)
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, "galaxyd"), nil
}

// Manager handles loading and saving configuration.
//
// Two views are kept: the effective config (defaults, file, environment and
// bound flags) that the daemon runs with, and the stored config (defaults and
// file only) that Save writes back. Overrides never reach the file.
type Manager struct {
	mu         sync.RWMutex
	configDir  string
	configPath string
	v          *viper.Viper
	config     *Config
	stored     *Config
}

// NewManager creates a new configuration manager
func NewManager(configDir string) *Manager {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, "config.yaml"),
		v:          v,
		config:     DefaultConfig(),
		stored:     DefaultConfig(),
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("libraryPaths", d.LibraryPaths)
	v.SetDefault("server.socketPath", d.Server.SocketPath)
	v.SetDefault("server.httpAddr", d.Server.HTTPAddr)
	v.SetDefault("discord.enabled", d.Discord.Enabled)
	v.SetDefault("discord.appId", d.Discord.AppID)
	v.SetDefault("discord.largeImage", d.Discord.LargeImage)
	v.SetDefault("discord.retryAttempts", d.Discord.RetryAttempts)
	v.SetDefault("discord.retryInterval", d.Discord.RetryInterval)
	v.SetDefault("discord.callTimeout", d.Discord.CallTimeout)
	v.SetDefault("discord.updatesPerWindow", d.Discord.UpdatesPerWindow)
	v.SetDefault("discord.updateWindow", d.Discord.UpdateWindow)
	v.SetDefault("mpris.enabled", d.MPRIS.Enabled)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.topic", d.MQTT.Topic)
	v.SetDefault("mqtt.clientId", d.MQTT.ClientID)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

// BindFlag lets a command-line flag override the config key
func (m *Manager) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}
	if err := m.v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
	}
	return nil
}

// Load reads the configuration from disk, writing defaults on first run
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		cfg, err := decode(m.v)
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.config = cfg
		m.stored = DefaultConfig()
		m.mu.Unlock()
		return m.Save()
	}

	m.v.SetConfigFile(m.configPath)
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := decode(m.v)
	if err != nil {
		return err
	}

	// same file and defaults, without env and flags
	fileOnly := viper.New()
	fileOnly.SetConfigType("yaml")
	setDefaults(fileOnly, DefaultConfig())
	fileOnly.SetConfigFile(m.configPath)
	if err := fileOnly.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	stored, err := decode(fileOnly)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.stored = stored
	m.mu.Unlock()
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the stored configuration to disk
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	m.mu.RLock()
	data, err := yaml.Marshal(m.stored)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns a copy of the effective configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := *m.config
	cfg.LibraryPaths = append([]string(nil), m.config.LibraryPaths...)
	return cfg
}

// GetPath returns the config file path
func (m *Manager) GetPath() string {
	return m.configPath
}

// Update applies change to both views and saves. change must not keep
// references into the Config it is given.
func (m *Manager) Update(change func(*Config)) error {
	m.mu.Lock()
	change(m.config)
	change(m.stored)
	m.mu.Unlock()
	return m.Save()
}

// AddLibraryPath records a directory the GUI opened
func (m *Manager) AddLibraryPath(path string) error {
	m.mu.RLock()
	known := contains(m.stored.LibraryPaths, path)
	m.mu.RUnlock()
	if known {
		return nil
	}

	return m.Update(func(cfg *Config) {
		if !contains(cfg.LibraryPaths, path) {
			cfg.LibraryPaths = append(append([]string{}, cfg.LibraryPaths...), path)
		}
	})
}

// RemoveLibraryPath removes a library path
func (m *Manager) RemoveLibraryPath(path string) error {
	return m.Update(func(cfg *Config) {
		paths := make([]string, 0, len(cfg.LibraryPaths))
		for _, p := range cfg.LibraryPaths {
			if p != path {
				paths = append(paths, p)
			}
		}
		cfg.LibraryPaths = paths
	})
}

func contains(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}
