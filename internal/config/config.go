package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Config is the merged application and source configuration
type Config struct {
	App      AppConfig     `yaml:"app"`
	Mcp      McpConfig     `yaml:"mcp"`
	Defaults ModelDefaults `yaml:"defaults"`
	Source   SourceConfig  `yaml:"source"`
}

// AppConfig configures the server process
type AppConfig struct {
	Port           int    `yaml:"port"`
	WorkDir        string `yaml:"work_dir"`
	ModelDir       string `yaml:"model_dir"`
	LogLevel       string `yaml:"log_level"`
	NumFileThreads int    `yaml:"num_file_threads"`
	TrainOnStart   bool   `yaml:"train_on_start"`
}

// McpConfig configures the MCP endpoint
type McpConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"` // Separate listener when non-zero
}

// GetAddress returns the address of the separate MCP listener
func (m McpConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// ModelDefaults are the model options used when a request or corpus sets none
type ModelDefaults struct {
	Kind      string   `yaml:"kind"`
	N         int      `yaml:"n"`
	Gamma     *float64 `yaml:"gamma"`
	Beta      *float64 `yaml:"beta"`
	AddOne    *bool    `yaml:"addone"`
	Lowercase bool     `yaml:"lowercase"`
}

// SourceConfig lists the corpora the server knows about
type SourceConfig struct {
	Corpora []Corpus `yaml:"corpora"`
}

// Corpus is a named training corpus
type Corpus struct {
	Name     string         `yaml:"name"`
	Path     string         `yaml:"path"`
	Language string         `yaml:"language"`
	Disabled bool           `yaml:"disabled"`
	Model    *ModelDefaults `yaml:"model"`
}

// LoadConfig reads app.yaml and source.yaml. A missing source file yields an
// empty corpus list.
func LoadConfig(appPath, sourcePath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(appPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read app config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse app config: %w", err)
	}

	if sourcePath != "" {
		data, err := os.ReadFile(sourcePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read source config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg.Source); err != nil {
				return nil, fmt.Errorf("failed to parse source config: %w", err)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.App.ModelDir == "" {
		c.App.ModelDir = "./lm_models"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.NumFileThreads == 0 {
		c.App.NumFileThreads = 2
	}
	if c.Defaults.Kind == "" {
		c.Defaults.Kind = "ngram"
	}
	if c.Defaults.N == 0 {
		c.Defaults.N = 3
	}
}

// Validate checks the configuration for values no component accepts
func (c *Config) Validate() error {
	if c.Defaults.N < 1 {
		return fmt.Errorf("defaults.n must be positive, got %d", c.Defaults.N)
	}
	seen := make(map[string]bool)
	for _, corpus := range c.Source.Corpora {
		if corpus.Name == "" {
			return fmt.Errorf("corpus with path %q has no name", corpus.Path)
		}
		if corpus.Path == "" {
			return fmt.Errorf("corpus %s has no path", corpus.Name)
		}
		if seen[corpus.Name] {
			return fmt.Errorf("duplicate corpus name: %s", corpus.Name)
		}
		seen[corpus.Name] = true
	}
	return nil
}

// ResolvedModelDir returns the model directory, relative to the work
// directory when one is set
func (c *Config) ResolvedModelDir() string {
	if c.App.WorkDir == "" || filepath.IsAbs(c.App.ModelDir) {
		return c.App.ModelDir
	}
	return filepath.Join(c.App.WorkDir, c.App.ModelDir)
}

// GetCorpus returns the corpus with the given name
func (c *Config) GetCorpus(name string) (*Corpus, error) {
	for i := range c.Source.Corpora {
		if c.Source.Corpora[i].Name == name {
			return &c.Source.Corpora[i], nil
		}
	}
	return nil, fmt.Errorf("corpus not found: %s", name)
}

// ModelOptions returns the corpus options, falling back to the defaults for
// every unset field
func (c *Config) ModelOptions(corpus *Corpus) ModelDefaults {
	opts := c.Defaults
	if corpus == nil || corpus.Model == nil {
		return opts
	}
	override := corpus.Model
	if override.Kind != "" {
		opts.Kind = override.Kind
	}
	if override.N != 0 {
		opts.N = override.N
	}
	if override.Gamma != nil {
		opts.Gamma = override.Gamma
	}
	if override.Beta != nil {
		opts.Beta = override.Beta
	}
	if override.AddOne != nil {
		opts.AddOne = override.AddOne
	}
	return opts
}
