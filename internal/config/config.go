// Package config provides the pipeline's configuration surface: the .env
// derived paths (AGSCONTENT, AGSDEST, AGSTEMP, FSUAEBIN) and the per-image
// YAML build configs under configs/.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadImageConfig loads and validates one image build config.
func LoadImageConfig(path string) (*ImageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ImageConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults(path)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults fills in missing values with defaults.
func (c *ImageConfig) applyDefaults(path string) {
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if c.Volume == "" {
		c.Volume = c.Name
	}
	if c.SizeMB == 0 {
		c.SizeMB = 512
	}
	if c.Filesystem == "" {
		c.Filesystem = "ffs"
	}
	if c.Chipset == "" {
		c.Chipset = "AGA"
	}
	if c.Emulator.Model == "" {
		c.Emulator.Model = "A1200"
	}
	for i := range c.AutoLists {
		if c.AutoLists[i].GroupBy == "" {
			c.AutoLists[i].GroupBy = "year"
		}
	}
}

func (c *ImageConfig) validate() error {
	if c.Filesystem != "ffs" {
		return fmt.Errorf("unsupported filesystem %q", c.Filesystem)
	}
	if c.SizeMB < 1 {
		return fmt.Errorf("size_mb must be positive, got %d", c.SizeMB)
	}
	// AmigaDOS volume name limit
	if len(c.Volume) > 30 {
		return fmt.Errorf("volume name %q exceeds 30 characters", c.Volume)
	}
	for _, l := range c.AutoLists {
		switch l.GroupBy {
		case "year", "publisher":
		default:
			return fmt.Errorf("auto list %q: unknown group_by %q", l.Name, l.GroupBy)
		}
		if l.Name == "" {
			return fmt.Errorf("auto list with empty name")
		}
	}
	return nil
}

// OutputName returns the image filename this config produces.
func (c *ImageConfig) OutputName() string {
	return c.Name + ".hdf"
}
