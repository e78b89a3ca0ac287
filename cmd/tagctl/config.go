package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional ~/.tagd.yaml. Flags override whatever is set
// here; everything has a default, so no file is needed at all.
type fileConfig struct {
	SQLitePath    string `yaml:"sqlite_path"`
	Delimiter     string `yaml:"delimiter"`
	UntagOnDelete *bool  `yaml:"untag_on_delete"`
	DeleteUnused  *bool  `yaml:"delete_unused_tags"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tagd.yaml")
}

// loadConfig reads the YAML config at path. A missing file at the default
// location is fine; a missing file named explicitly is an error.
func loadConfig(path string, explicit bool) (fileConfig, error) {
	cfg := fileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
