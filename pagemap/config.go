package pagemap

import (
	"github.com/hazyhaar/domsight/pagemap/internal/config"
)

// Config is the top-level pagemap configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig defines a page to open.
type PageConfig = config.PageConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes YAML configuration and applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}
