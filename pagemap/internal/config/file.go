// Package config handles pagemap configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/domsight/guard"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Config is the top-level pagemap configuration.
type Config struct {
	Browser  BrowserConfig    `yaml:"browser"`
	Pages    []PageConfig     `yaml:"pages"`
	Snapshot *snapshot.Config `yaml:"snapshot"`
	Sinks    []SinkConfig     `yaml:"sinks"`
	Journal  JournalConfig    `yaml:"journal"`
	Server   ServerConfig     `yaml:"server"`
	Security SecurityConfig   `yaml:"security"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
	ViewportWidth    int           `yaml:"viewport_width"`
	ViewportHeight   int           `yaml:"viewport_height"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
}

// PageConfig defines a page opened at startup.
type PageConfig struct {
	ID           string `yaml:"id"`
	URL          string `yaml:"url"`
	StealthLevel string `yaml:"stealth_level"` // 0 | 1 | 2 | auto
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// JournalConfig locates the command journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SecurityConfig restricts the URLs pages may be opened or navigated to.
type SecurityConfig struct {
	// BlockPrivateNetworks rejects URLs whose host is or resolves to a
	// loopback, link-local or private address.
	BlockPrivateNetworks bool `yaml:"block_private_networks"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	// Fields left out of a snapshot section keep their defaults.
	def := snapshot.DefaultConfig()
	cfg := Config{Snapshot: &def}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks sinks, pages and the snapshot defaults.
func (c *Config) Validate() error {
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth must be headless or headful, got %q", c.Browser.Stealth)
	}
	seen := make(map[string]bool, len(c.Pages))
	for i, p := range c.Pages {
		if p.ID == "" || p.URL == "" {
			return fmt.Errorf("config: pages[%d]: id and url are required", i)
		}
		if err := guard.ValidateIdentifier(p.ID); err != nil {
			return fmt.Errorf("config: pages[%d]: %w", i, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("config: pages[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook requires url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	if c.Snapshot != nil {
		if err := c.Snapshot.Validate(); err != nil {
			return fmt.Errorf("config: snapshot: %w", err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	c.Browser.Stealth = strings.ToLower(c.Browser.Stealth)
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = 1280
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = 720
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	for i := range c.Pages {
		if c.Pages[i].StealthLevel == "" {
			c.Pages[i].StealthLevel = "auto"
		}
	}
	if c.Snapshot == nil {
		def := snapshot.DefaultConfig()
		c.Snapshot = &def
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8420"
	}
}
