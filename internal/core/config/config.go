// Package config handles configuration loading and validation for warden.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported command-interface transports.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Config holds the application configuration.
type Config struct {
	Vault string `yaml:"vault"` // vault root; overridable by flag
	Agent string `yaml:"agent"` // agent name for audit notes and dashboard entries

	// Credentials points at the channel credentials file handed to
	// real mail/chat clients. When set, the file must exist at startup.
	Credentials string `yaml:"credentials"`


	Watch  WatchConfig  `yaml:"watch"`
	Mover  MoverConfig  `yaml:"mover"`
	Server ServerConfig `yaml:"server"`
}

// WatchConfig configures the ingestion watchers.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Mail     MailConfig    `yaml:"mail"`
	Chat     ChatConfig    `yaml:"chat"`
	Drop     DropConfig    `yaml:"drop"`
}

// MailConfig configures the mail source.
type MailConfig struct {
	Maildir     string `yaml:"maildir"`
	MaxPerCycle int    `yaml:"max_per_cycle"`
}

// ChatConfig configures the chat source.
type ChatConfig struct {
	Feed           string   `yaml:"feed"`        // thread feed file exported by the bridge
	SessionDir     string   `yaml:"session_dir"` // authorization marker directory
	Keywords       []string `yaml:"keywords"`
	UrgentKeywords []string `yaml:"urgent_keywords"`
}

// DropConfig configures the file-drop source.
type DropConfig struct {
	Inbox   string   `yaml:"inbox"`
	Ignores []string `yaml:"ignores"` // glob patterns matched against filenames
}

// MoverConfig configures the task mover.
type MoverConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ServerConfig configures the command interface.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"` // http or stdio
	Outbox    string `yaml:"outbox"`    // outbound action journal; empty = <vault>/outbox.jsonl
	DryRun    bool   `yaml:"dry_run"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Agent: "warden",
		Watch: WatchConfig{
			Interval: 30 * time.Second,
			Mail: MailConfig{
				MaxPerCycle: 10,
			},
			Chat: ChatConfig{
				Keywords:       []string{"urgent", "asap", "invoice", "payment", "help", "important", "reminder", "deadline"},
				UrgentKeywords: []string{"urgent", "asap", "emergency", "immediately"},
			},
			Drop: DropConfig{
				Ignores: []string{"*.swp", "~$*"},
			},
		},
		Mover: MoverConfig{
			Interval: 30 * time.Second,
		},
		Server: ServerConfig{
			Port:      8080,
			Transport: TransportHTTP,
		},
	}
}

// Load reads configuration from the given path on top of the defaults.
// A missing file is fine; an unreadable or invalid one is not. A
// non-empty vaultRoot (from flag or environment) overrides the file's
// vault key.
func Load(configPath, vaultRoot string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if vaultRoot != "" {
		cfg.Vault = vaultRoot
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Agent == "" {
		c.Agent = defaults.Agent
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = defaults.Watch.Interval
	}
	if c.Watch.Mail.MaxPerCycle <= 0 {
		c.Watch.Mail.MaxPerCycle = defaults.Watch.Mail.MaxPerCycle
	}
	if len(c.Watch.Chat.Keywords) == 0 {
		c.Watch.Chat.Keywords = defaults.Watch.Chat.Keywords
	}
	if len(c.Watch.Chat.UrgentKeywords) == 0 {
		c.Watch.Chat.UrgentKeywords = defaults.Watch.Chat.UrgentKeywords
	}
	if c.Mover.Interval <= 0 {
		c.Mover.Interval = defaults.Mover.Interval
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.Transport == "" {
		c.Server.Transport = defaults.Server.Transport
	}
	if c.Watch.Chat.SessionDir == "" && c.Vault != "" {
		c.Watch.Chat.SessionDir = filepath.Join(c.Vault, ".warden", "chat-session")
	}
	if c.Watch.Drop.Inbox == "" && c.Vault != "" {
		c.Watch.Drop.Inbox = filepath.Join(c.Vault, "Inbox")
	}
	if c.Server.Outbox == "" && c.Vault != "" {
		c.Server.Outbox = filepath.Join(c.Vault, "outbox.jsonl")
	}
}
