package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kalambet/reqchat/internal/engine"
	"github.com/kalambet/reqchat/internal/requirements"
)

// Config is the resolved configuration. The yaml tags give the layout of
// config.yaml; secrets never appear in it.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Oracle  OracleConfig  `yaml:"oracle,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Log     LogConfig     `yaml:"log,omitempty"`
}

type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
	// APIToken enables bearer authentication on /api when set.
	APIToken string `yaml:"-"`
}

type OracleConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	APIKey   string `yaml:"-"`
	Timeout  string `yaml:"timeout,omitempty"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir,omitempty"`
}

type SessionConfig struct {
	MergePolicy string `yaml:"merge_policy,omitempty"`
	CacheSize   int    `yaml:"cache_size,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Oracle: OracleConfig{
			Provider: engine.ProviderOllama,
			Model:    "qwen2.5:7b",
			Timeout:  "60s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Session: SessionConfig{
			MergePolicy: string(requirements.MergeAdditive),
			CacheSize:   128,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/reqchat/config.yaml, a .env file in the working
// directory, and REQCHAT_* environment variables, in increasing precedence.
// Secrets (API token, oracle API key) are only read from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not read .env file: %v\n", err)
	}
	return loadWith(userFile())
}

func loadWith(f settingsFile) (Config, error) {
	cfg := defaults()

	if err := f.apply(&cfg); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Fall back to the provider's conventional key variable.
	if cfg.Oracle.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.Oracle.Provider]; ok {
			cfg.Oracle.APIKey = os.Getenv(env)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var providerKeyEnv = map[string]string{
	engine.ProviderOpenRouter: "OPENROUTER_API_KEY",
	engine.ProviderGemini:     "GEMINI_API_KEY",
}

func (c Config) validate() error {
	switch c.Oracle.Provider {
	case engine.ProviderOllama:
	case engine.ProviderOpenRouter, engine.ProviderGemini:
		if c.Oracle.APIKey == "" {
			return fmt.Errorf("missing required config: oracle API key for provider %q. "+
				"Set it via environment variable REQCHAT_ORACLE_API_KEY or %s",
				c.Oracle.Provider, providerKeyEnv[c.Oracle.Provider])
		}
	default:
		return fmt.Errorf("invalid oracle.provider %q: want ollama, openrouter or gemini", c.Oracle.Provider)
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("missing required config: oracle.model")
	}
	if _, err := c.OracleTimeout(); err != nil {
		return err
	}
	if _, err := c.MergePolicy(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// OracleTimeout parses oracle.timeout.
func (c Config) OracleTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Oracle.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid oracle.timeout %q: want a positive duration such as 60s", c.Oracle.Timeout)
	}
	return d, nil
}

// MergePolicy parses session.merge_policy.
func (c Config) MergePolicy() (requirements.MergePolicy, error) {
	return requirements.ParseMergePolicy(c.Session.MergePolicy)
}

// EngineConfig returns the oracle engine selection.
func (c Config) EngineConfig() engine.DetectConfig {
	return engine.DetectConfig{
		Provider: c.Oracle.Provider,
		BaseURL:  c.Oracle.BaseURL,
		APIKey:   c.Oracle.APIKey,
	}
}
