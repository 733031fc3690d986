package config

import (
	"fmt"
	"os"
)

// Where a shown value comes from.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
)

// KeyInfo is one config key as shown by "reqchat config show".
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
	Source string
}

// ShowAll lists every config key with its effective value and source.
// Secrets are reported as set or unset, never by value.
func ShowAll(cfg Config) []KeyInfo {
	def := defaults()
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		v := s.extract(cfg)
		ki := KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(v), Source: SourceDefault}
		switch {
		case os.Getenv(s.env) != "":
			ki.Source = SourceEnv
		case v != s.extract(def):
			ki.Source = SourceFile
			if s.secret {
				// Secrets come only from the environment, here a provider variable.
				ki.Source = SourceEnv
			}
		}
		if s.secret {
			ki.Value = "(unset)"
			if v != "" {
				ki.Value = "(set)"
			}
		}
		result = append(result, ki)
	}
	return result
}

// SetKey writes a config key to the config file.
func SetKey(key, value string) error {
	return setKey(userFile(), key, value)
}

func setKey(f settingsFile, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
	}
	v, err := s.parse(value)
	if err != nil {
		return err
	}
	return f.update(func(cfg *Config) { s.apply(cfg, v) })
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
