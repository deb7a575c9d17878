// Package config loads journal settings from a YAML file, an optional .env
// file, and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultModel        = "claude-sonnet-4-5"
	defaultOllamaHost   = "http://localhost:11434"
	defaultTimeout      = 90 * time.Second
	defaultMaxTokens    = 2048
	defaultBatchSize    = 5
	defaultSchedule     = "@every 10m"
	defaultFetchTimeout = 45 * time.Second
	defaultFetchRate    = 6
	maxBatchSize        = 50
)

// Config is the full set of journal settings.
type Config struct {
	DataDir  string `yaml:"data_dir"`
	Database string `yaml:"database"`

	LLM    LLMConfig    `yaml:"llm"`
	Log    LogConfig    `yaml:"log"`
	Import ImportConfig `yaml:"import"`

	// path is where the config was read from, empty when only defaults applied.
	path string
}

// LLMConfig selects the model and holds provider credentials.
type LLMConfig struct {
	Model        string        `yaml:"model"`
	DefaultModel string        `yaml:"default_model"`
	AnthropicKey string        `yaml:"anthropic_api_key,omitempty"`
	OpenAIKey    string        `yaml:"openai_api_key,omitempty"`
	OllamaHost   string        `yaml:"ollama_host"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxTokens    int           `yaml:"max_tokens"`
}

// LogConfig controls logrus output. An empty File means stderr.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ImportConfig tunes conversation import and the backfill pass.
type ImportConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	Schedule       string        `yaml:"schedule"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	FetchPerMinute int           `yaml:"fetch_per_minute"`
	CacheDir       string        `yaml:"cache_dir"`
}

// Default returns a config with every field populated.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		DataDir:  dataDir,
		Database: filepath.Join(dataDir, "journal.db"),
		LLM: LLMConfig{
			DefaultModel: defaultModel,
			OllamaHost:   defaultOllamaHost,
			Timeout:      defaultTimeout,
			MaxTokens:    defaultMaxTokens,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   filepath.Join(dataDir, "journal.log"),
		},
		Import: ImportConfig{
			BatchSize:      defaultBatchSize,
			Schedule:       defaultSchedule,
			FetchTimeout:   defaultFetchTimeout,
			FetchPerMinute: defaultFetchRate,
			CacheDir:       filepath.Join(dataDir, "cache"),
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("JOURNAL_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".journal"
	}
	return filepath.Join(home, ".journal")
}

// DefaultPath is where Load looks when neither an explicit path nor
// JOURNAL_CONFIG is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(defaultDataDir(), "config.yaml")
	}
	return filepath.Join(dir, "journal", "config.yaml")
}

// Load reads the config file at path (or JOURNAL_CONFIG, or DefaultPath),
// applies .env and environment overrides, and validates the result. A
// missing file is only an error when the path was given explicitly.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		if env := os.Getenv("JOURNAL_CONFIG"); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath()
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Path reports the file the config was read from, if any.
func (c Config) Path() string {
	return c.path
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"ANTHROPIC_API_KEY", &c.LLM.AnthropicKey},
		{"OPENAI_API_KEY", &c.LLM.OpenAIKey},
		{"OLLAMA_HOST", &c.LLM.OllamaHost},
		{"JOURNAL_MODEL", &c.LLM.Model},
		{"JOURNAL_DB", &c.Database},
		{"JOURNAL_LOG_LEVEL", &c.Log.Level},
	}
	for _, o := range overrides {
		if value := strings.TrimSpace(os.Getenv(o.key)); value != "" {
			*o.target = value
		}
	}
}

// fillDerived restores defaults for fields a config file blanked out.
func (c *Config) fillDerived() {
	def := Default()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.Database == "" {
		c.Database = filepath.Join(c.DataDir, "journal.db")
	}
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = def.LLM.DefaultModel
	}
	if c.LLM.OllamaHost == "" {
		c.LLM.OllamaHost = def.LLM.OllamaHost
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Import.Schedule == "" {
		c.Import.Schedule = def.Import.Schedule
	}
	if c.Import.CacheDir == "" {
		c.Import.CacheDir = filepath.Join(c.DataDir, "cache")
	}
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("config: database path is empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("config: llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("config: llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Import.BatchSize < 1 || c.Import.BatchSize > maxBatchSize {
		return fmt.Errorf("config: import.batch_size must be between 1 and %d, got %d", maxBatchSize, c.Import.BatchSize)
	}
	if c.Import.FetchPerMinute < 1 {
		return fmt.Errorf("config: import.fetch_per_minute must be positive, got %d", c.Import.FetchPerMinute)
	}
	if c.Import.FetchTimeout <= 0 {
		return fmt.Errorf("config: import.fetch_timeout must be positive, got %s", c.Import.FetchTimeout)
	}
	if _, err := cron.ParseStandard(c.Import.Schedule); err != nil {
		return fmt.Errorf("config: import.schedule: %w", err)
	}
	return nil
}

// Save writes c as YAML to path, creating parent directories. Credentials
// are left out so they stay in the environment.
func Save(path string, c Config) error {
	c.LLM.AnthropicKey, c.LLM.OpenAIKey = "", ""
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
