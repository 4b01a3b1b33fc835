package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/stupside/facet/internal/geo"
	"github.com/stupside/facet/internal/launcher"
)

const (
	DefaultServerAddr = "127.0.0.1:8787"
	DefaultOutputTail = 8192
)

// Config holds all application configuration.
type Config struct {
	Storage StorageConfig `koanf:"storage" validate:"required"`
	Browser BrowserConfig `koanf:"browser" validate:"required"`
	Geo     GeoConfig     `koanf:"geo" validate:"required"`
	Server  ServerConfig  `koanf:"server"`
}

// StorageConfig locates profiles and the proxy list.
type StorageConfig struct {
	ProfilesDir string `koanf:"profiles_dir" validate:"required"`
	ProxiesDB   string `koanf:"proxies_db" validate:"required"`
}

// BrowserConfig holds settings for launched browsers.
type BrowserConfig struct {
	ChromePath    string        `koanf:"chrome_path"`
	Headless      bool          `koanf:"headless"`
	NoSandbox     bool          `koanf:"no_sandbox"`
	LaunchTimeout time.Duration `koanf:"launch_timeout" validate:"required"`
	DefaultURL    string        `koanf:"default_url" validate:"omitempty,url"`
	OutputTail    int           `koanf:"output_tail" validate:"gte=0"`
}

// GeoConfig holds proxy geo resolution settings.
type GeoConfig struct {
	Endpoint  string        `koanf:"endpoint" validate:"omitempty,url"`
	Timeout   time.Duration `koanf:"timeout" validate:"required"`
	MMDBPath  string        `koanf:"mmdb_path"`
	DNSServer string        `koanf:"dns_server" validate:"omitempty,hostname_port"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.defaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) defaults() {
	if c.Browser.DefaultURL == "" {
		c.Browser.DefaultURL = launcher.DefaultURL
	}
	if c.Browser.OutputTail == 0 {
		c.Browser.OutputTail = DefaultOutputTail
	}
	if c.Geo.Endpoint == "" {
		c.Geo.Endpoint = geo.DefaultEndpoint
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}

// ConfigFrom extracts the Config from the CLI command metadata.
func ConfigFrom(cmd *cli.Command) (*Config, error) {
	v, ok := cmd.Root().Metadata["config"]
	if !ok {
		return nil, fmt.Errorf("config not found in command metadata")
	}
	cfg, ok := v.(*Config)
	if !ok {
		return nil, fmt.Errorf("config has unexpected type %T", v)
	}
	return cfg, nil
}
