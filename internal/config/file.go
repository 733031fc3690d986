package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// settingsFile is the user's config.yaml. Its sections and keys are the
// dotted key names of specs, e.g.
//
//	server:
//	  port: 4100
//	oracle:
//	  model: qwen2.5:7b
type settingsFile struct {
	path string
}

// FilePath returns the location of the config file.
func FilePath() string { return userFile().path }

func userFile() settingsFile {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return settingsFile{path: filepath.Join(dir, "reqchat", "config.yaml")}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "reqchat-data"
		}
	}
	return filepath.Join(dir, "reqchat")
}

// apply decodes the file onto cfg. Keys absent from the file keep their
// current values; a missing file changes nothing.
func (f settingsFile) apply(cfg *Config) error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := checkKeys(f.path, data); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", f.path, err)
	}
	return nil
}

// update rewrites the file with fn applied to the values it already holds.
// Only keys set in the file are written back; defaults stay implicit.
func (f settingsFile) update(fn func(cfg *Config)) error {
	var stored Config
	if err := f.apply(&stored); err != nil {
		return err
	}
	fn(&stored)

	data, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(f.path, data, 0o600)
}

// checkKeys rejects keys reqchat does not know. Secrets found in the file
// are reported and ignored since they are read from the environment only.
func checkKeys(path string, data []byte) error {
	var sections map[string]map[string]yaml.Node
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	var unknown []string
	for section, keys := range sections {
		for key := range keys {
			name := section + "." + key
			s, ok := lookupSpec(name)
			switch {
			case !ok:
				unknown = append(unknown, name)
			case s.secret:
				fmt.Fprintf(os.Stderr, "[WARN] %s in %s is ignored; set %s instead.\n", name, path, s.env)
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("config file %s: unknown keys %v", path, unknown)
	}
	return nil
}
