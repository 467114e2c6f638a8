// Package config loads the daemon configuration: a YAML file, optional
// .env overrides, defaults for anything left unset, and struct-tag
// validation before the values reach the rest of the program.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMode       = "single"
	DefaultEngine     = "sqlite"
	DefaultStorePath  = "vigil.db"
	DefaultServerAddr = "127.0.0.1:8787"
	DefaultTickSecs   = 60
)

type AudioConfig struct {
	Device string `yaml:"device"` // capture device name, empty = system default
	Mode   string `yaml:"mode" validate:"oneof=single two_person"`
}

type StoreConfig struct {
	Engine string `yaml:"engine" validate:"oneof=sqlite json"`
	Path   string `yaml:"path" validate:"required"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

type WebhookConfig struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

type Config struct {
	Audio    AudioConfig   `yaml:"audio"`
	Store    StoreConfig   `yaml:"store"`
	Server   ServerConfig  `yaml:"server"`
	Webhook  WebhookConfig `yaml:"webhook"`
	LogPath  string        `yaml:"log_path"`
	TickSecs int           `yaml:"tick_seconds" validate:"gte=1,lte=600"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the YAML file at path (a missing file means defaults only),
// applies .env and environment overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	// A .env beside the binary is optional.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Audio.Device = cmp.Or(os.Getenv("VIGIL_DEVICE"), cfg.Audio.Device)
	cfg.Audio.Mode = cmp.Or(os.Getenv("VIGIL_MODE"), cfg.Audio.Mode)
	cfg.Store.Engine = cmp.Or(os.Getenv("VIGIL_STORE_ENGINE"), cfg.Store.Engine)
	cfg.Store.Path = cmp.Or(os.Getenv("VIGIL_STORE_PATH"), cfg.Store.Path)
	cfg.Server.Addr = cmp.Or(os.Getenv("VIGIL_SERVER_ADDR"), cfg.Server.Addr)
	cfg.Webhook.URL = cmp.Or(os.Getenv("VIGIL_WEBHOOK_URL"), cfg.Webhook.URL)
}

func applyDefaults(cfg *Config) {
	cfg.Audio.Mode = cmp.Or(cfg.Audio.Mode, DefaultMode)
	cfg.Store.Engine = cmp.Or(cfg.Store.Engine, DefaultEngine)
	cfg.Store.Path = cmp.Or(cfg.Store.Path, DefaultStorePath)
	cfg.Server.Addr = cmp.Or(cfg.Server.Addr, DefaultServerAddr)
	cfg.TickSecs = cmp.Or(cfg.TickSecs, DefaultTickSecs)
}
