package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const FileName = "stowplan.yml"

// Config models stowplan.yml.
type Config struct {
	Allocation struct {
		DefaultBSF float64 `yaml:"default_bsf"`
	} `yaml:"allocation"`
	Import struct {
		AllowedExtensions []string `yaml:"allowed_extensions"`
		MaxRows           int      `yaml:"max_rows"`
	} `yaml:"import"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Reports struct {
		// Destination is an afs URL prefix such as file:///var/reports or mem://localhost/reports.
		Destination string `yaml:"destination"`
	} `yaml:"reports"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig subscribes a URL to planning events. An empty Events list
// receives everything.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if bsf := c.Allocation.DefaultBSF; bsf < 0 || bsf > 1 {
		return fmt.Errorf("config.allocation.default_bsf must be between 0 and 1, got %v", bsf)
	}
	if len(c.Import.AllowedExtensions) == 0 {
		return fmt.Errorf("config.import.allowed_extensions is required")
	}
	for _, ext := range c.Import.AllowedExtensions {
		switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
		case "csv", "xlsx":
		default:
			return fmt.Errorf("config.import.allowed_extensions: unsupported extension %q", ext)
		}
	}
	if c.Import.MaxRows < 0 {
		return fmt.Errorf("config.import.max_rows must not be negative")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.logging.format %q is not one of text, json", c.Logging.Format)
	}
	for i, hook := range c.Webhooks {
		u, err := url.Parse(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) URL", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// AllowsExtension reports whether a file name's extension may be imported.
func (c *Config) AllowsExtension(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, allowed := range c.Import.AllowedExtensions {
		if strings.ToLower(strings.TrimPrefix(allowed, ".")) == ext {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with stow config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns Default() if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `allocation:
  # fraction of extra floor space lost to aisles and irregular stacking
  default_bsf: 0.63

import:
  allowed_extensions: [csv, xlsx]
  max_rows: 10000

server:
  addr: 127.0.0.1:8080
  base_path: /v0

reports:
  destination: file://./reports

logging:
  level: info
  format: text

# webhooks:
#   - url: https://hooks.example.com/stowplan
#     events: [allocation.run]
#     secret: change-me
`
