package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"

	// HostSuffix is appended to bare subdomain names for services and hosts.
	HostSuffix = "unisrv.dev"
)

type Config struct {
	Version  string   `yaml:"version"`
	APIHost  string   `yaml:"api-host,omitempty"`
	Settings Settings `yaml:"settings,omitempty"`
}

type Settings struct {
	OutputFormat string `yaml:"output-format,omitempty"`
	Timeout      string `yaml:"timeout,omitempty"`
	CAFile       string `yaml:"ca-file,omitempty"`
	Insecure     bool   `yaml:"insecure-skip-tls-verify,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Settings: Settings{
			OutputFormat: "table",
		},
	}
}

// Load reads the settings file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) Validate() error {
	if c.Version != VersionV1 {
		return fmt.Errorf("unsupported version %q", c.Version)
	}
	if c.APIHost != "" {
		if _, err := NormalizeHost(c.APIHost); err != nil {
			return err
		}
	}
	if c.Settings.Timeout != "" {
		if _, err := time.ParseDuration(c.Settings.Timeout); err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
	}
	return nil
}

// Set updates a single key using its dotted name.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api-host":
		if value != "" {
			if _, err := NormalizeHost(value); err != nil {
				return err
			}
		}
		c.APIHost = value
	case "settings.output-format":
		c.Settings.OutputFormat = value
	case "settings.timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		c.Settings.Timeout = value
	case "settings.ca-file":
		c.Settings.CAFile = value
	case "settings.insecure-skip-tls-verify":
		c.Settings.Insecure = strings.EqualFold(value, "true")
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// ResolveAPIHost picks the API host: flag, then API_HOST, then the settings
// file, then the build default.
func ResolveAPIHost(flag string, cfg *Config) (string, error) {
	host := flag
	if host == "" {
		host = os.Getenv("API_HOST")
	}
	if host == "" && cfg != nil {
		host = cfg.APIHost
	}
	if host == "" {
		host = DefaultAPIHost
	}
	return NormalizeHost(host)
}

// NormalizeHost adds https:// to a bare host and strips trailing slashes.
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", errors.New("api host is empty")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("invalid api host: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid api host %q: scheme must be http or https", host)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid api host %q", host)
	}
	return strings.TrimRight(parsed.String(), "/"), nil
}

// QualifyDomain turns a bare name into <name>.unisrv.dev. Names that already
// contain a dot are returned unchanged.
func QualifyDomain(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + "." + HostSuffix
}
