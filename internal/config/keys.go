package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "REQCHAT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "REQCHAT_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "oracle.provider", typ: kString, env: "REQCHAT_ORACLE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.Provider },
	},
	{
		key: "oracle.model", typ: kString, env: "REQCHAT_ORACLE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.Model },
	},
	{
		key: "oracle.base_url", typ: kString, env: "REQCHAT_ORACLE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Oracle.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.BaseURL },
	},
	{
		key: "oracle.api_key", typ: kString, env: "REQCHAT_ORACLE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Oracle.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.APIKey },
	},
	{
		key: "oracle.timeout", typ: kString, env: "REQCHAT_ORACLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Oracle.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Oracle.Timeout },
	},
	{
		key: "storage.data_dir", typ: kString, env: "REQCHAT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "session.merge_policy", typ: kString, env: "REQCHAT_SESSION_MERGE_POLICY",
		apply:   func(cfg *Config, v any) { cfg.Session.MergePolicy = v.(string) },
		extract: func(cfg Config) any { return cfg.Session.MergePolicy },
	},
	{
		key: "session.cache_size", typ: kInt, env: "REQCHAT_SESSION_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Session.CacheSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Session.CacheSize },
	},
	{
		key: "log.level", typ: kString, env: "REQCHAT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func (s keySpec) parse(raw string) (any, error) {
	if s.typ != kInt {
		return raw, nil
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
	}
	return i, nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
