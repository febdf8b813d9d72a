// Package config assembles the doorshop configuration from the core
// settings, the database block and shop options.
package config

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/doorshop/core/config"
	coredatabase "github.com/m3rciful/doorshop/core/database"
)

const defaultPageSize = 5

// Shop holds storefront options.
type Shop struct {
	// MediaDir is the root for downloaded product and section media.
	MediaDir string `yaml:"media_dir" envconfig:"MEDIA_DIR"`
	PageSize int    `yaml:"page_size" envconfig:"PAGE_SIZE"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Shop     Shop                `yaml:"shop"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads the optional YAML file at path, a .env file and the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and applies defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	c.Shop.MediaDir = strings.TrimSpace(c.Shop.MediaDir)
	if c.Shop.MediaDir == "" {
		return fmt.Errorf("shop.media_dir (MEDIA_DIR) is required")
	}
	if c.Shop.PageSize < 0 {
		return fmt.Errorf("shop.page_size must be >= 0")
	}
	if c.Shop.PageSize == 0 {
		c.Shop.PageSize = defaultPageSize
	}
	return nil
}
