package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSystemPrompt is the instruction prepended to every exchange unless
// the config overrides it.
const DefaultSystemPrompt = "You are a helpful assistant that answers questions from the user."

// Config represents runtime configuration for the relay.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
}

type BasicConfig struct {
	ServerAddress   string `json:"server_address"`
	DefaultProvider string `json:"default_provider"`
	SystemPrompt    string `json:"system_prompt"`
	LogLevel        string `json:"log_level"`
	LogFile         string `json:"log_file"`

	MinWorkers        int `json:"min_workers"`
	MaxWorkers        int `json:"max_workers"`
	QueueSize         int `json:"queue_size"`
	WorkerIdleTimeout int `json:"worker_idle_timeout"` // minutes
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: the built-in defaults give a working
// sqlite-backed server with the openai provider taken from the environment.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Relative sqlite paths resolve against the config file's directory.
	if db, ok := cfg.Databases["sqlite3"]; ok && db.DSN != "" && !filepath.IsAbs(db.DSN) && db.DSN != ":memory:" {
		db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
		cfg.Databases["sqlite3"] = db
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the zero-setup configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8000"
	}
	if c.BasicConfig.DefaultProvider == "" {
		c.BasicConfig.DefaultProvider = "openai"
	}
	if c.BasicConfig.SystemPrompt == "" {
		c.BasicConfig.SystemPrompt = DefaultSystemPrompt
	}
	if c.BasicConfig.MinWorkers <= 0 {
		c.BasicConfig.MinWorkers = 2
	}
	if c.BasicConfig.MaxWorkers < c.BasicConfig.MinWorkers {
		c.BasicConfig.MaxWorkers = c.BasicConfig.MinWorkers * 4
	}
	if c.BasicConfig.QueueSize <= 0 {
		c.BasicConfig.QueueSize = 64
	}
	if c.Databases == nil {
		c.Databases = map[string]DatabaseConfig{}
	}
	if db, ok := c.Databases["sqlite3"]; !ok || db.DSN == "" {
		dsn := os.Getenv("CHATRELAY_DB_DSN")
		if dsn == "" {
			dsn = "./chatrelay.db"
		}
		c.Databases["sqlite3"] = DatabaseConfig{DSN: dsn}
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	if p, ok := c.Providers["openai"]; !ok || p.Model == "" {
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			model = "gpt-5-nano"
		}
		if p.APIKey == "" {
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		p.Model = model
		c.Providers["openai"] = p
	}
}
