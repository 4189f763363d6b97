package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"goalsync/internal/tracker"
)

// Config models goalsync.yml.
type Config struct {
	// Repo is the tracker repository slug, owner/name.
	Repo string `yaml:"repo"`

	// SiteBase is the base URL of the rendered goal book. Goal-document
	// permalinks embedded in issue bodies are derived from it.
	SiteBase string `yaml:"site_base"`

	Directories struct {
		People string `yaml:"people"`
		Teams  string `yaml:"teams"`
	} `yaml:"directories"`

	Sync struct {
		SleepMS   int `yaml:"sleep_ms"`
		MaxPasses int `yaml:"max_passes"`
	} `yaml:"sync"`

	Tracker struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token,omitempty"`
		App     struct {
			ID             string `yaml:"id,omitempty"`
			InstallationID int64  `yaml:"installation_id,omitempty"`
			PrivateKeyPath string `yaml:"private_key_path,omitempty"`
		} `yaml:"app,omitempty"`
	} `yaml:"tracker"`

	Trackerd struct {
		Addr  string `yaml:"addr,omitempty"`
		Token string `yaml:"token,omitempty"`
	} `yaml:"trackerd,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with goalsync config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Repo == "" {
		return fmt.Errorf("config.repo is required")
	}
	if _, err := tracker.ParseRepo(c.Repo); err != nil {
		return fmt.Errorf("config.repo: %w", err)
	}
	if c.SiteBase == "" {
		return fmt.Errorf("config.site_base is required")
	}
	if c.Directories.People == "" {
		return fmt.Errorf("config.directories.people is required")
	}
	if c.Directories.Teams == "" {
		return fmt.Errorf("config.directories.teams is required")
	}
	if c.Sync.SleepMS < 0 {
		return fmt.Errorf("config.sync.sleep_ms must not be negative")
	}
	if c.Sync.MaxPasses < 0 {
		return fmt.Errorf("config.sync.max_passes must not be negative")
	}
	app := c.Tracker.App
	appFields := 0
	if app.ID != "" {
		appFields++
	}
	if app.InstallationID != 0 {
		appFields++
	}
	if app.PrivateKeyPath != "" {
		appFields++
	}
	if appFields != 0 && appFields != 3 {
		return fmt.Errorf("config.tracker.app needs id, installation_id and private_key_path together")
	}
	if appFields == 3 && c.Tracker.Token != "" {
		return fmt.Errorf("config.tracker: set either token or app credentials, not both")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "goalsync.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(repo string) string {
	return fmt.Sprintf(defaultTemplate, repo)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a repository slug.
func Default(repo string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, repo)), &cfg)
	cfg.applyDefaults()
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func (c *Config) applyDefaults() {
	if c.Tracker.BaseURL == "" {
		c.Tracker.BaseURL = "https://api.github.com"
	}
	if c.Sync.SleepMS == 0 {
		c.Sync.SleepMS = 500
	}
	if c.Trackerd.Addr == "" {
		c.Trackerd.Addr = "127.0.0.1:8080"
	}
}

const defaultTemplate = `repo: %s
site_base: https://example.github.io/goals

directories:
  people: directory/people.yaml
  teams: directory/teams.yaml

sync:
  sleep_ms: 500
  max_passes: 0

tracker:
  base_url: https://api.github.com
`
