// Package config is the process configuration: the core sections plus the
// database and invitation settings of the tabletop bots.
package config

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/tabletop/core/config"
	coredatabase "github.com/m3rciful/tabletop/core/database"
)

// DefaultQRDir is where invitation QR images are written when unset.
const DefaultQRDir = "data/qr"

// InvitesConfig configures invitation delivery.
type InvitesConfig struct {
	QRDir string `yaml:"qr_dir" envconfig:"INVITES_QR_DIR"`
}

// Config is the full configuration file.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Invites  InvitesConfig       `yaml:"invites"`
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Database.Host) == "" {
		return fmt.Errorf("database.host is required")
	}
	if strings.TrimSpace(cfg.Database.Name) == "" {
		return fmt.Errorf("database.name is required")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 10
	}
	if strings.TrimSpace(cfg.Invites.QRDir) == "" {
		cfg.Invites.QRDir = DefaultQRDir
	}
	return nil
}
