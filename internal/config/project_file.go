package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the on-disk form of .backlogsync/config.yaml.
type ProjectFile struct {
	Space      string `yaml:"space,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	ProjectKey string `yaml:"project_key,omitempty"`
	Domain     string `yaml:"domain,omitempty"`
	Mode       string `yaml:"mode,omitempty"`
	Parallel   int    `yaml:"parallel,omitempty"`
}

// Validate checks the fields that are set.
func (p ProjectFile) Validate() error {
	if p.Mode != "" && p.Mode != ModeRead && p.Mode != ModeWrite {
		return fmt.Errorf("invalid mode %q: must be %q or %q", p.Mode, ModeRead, ModeWrite)
	}
	if p.Parallel != 0 && (p.Parallel < 1 || p.Parallel > MaxParallel) {
		return fmt.Errorf("invalid parallel %d: must be between 1 and %d", p.Parallel, MaxParallel)
	}
	return nil
}

// ReadProjectFile loads path. A missing file yields an empty ProjectFile.
func ReadProjectFile(path string) (ProjectFile, error) {
	var file ProjectFile
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return file, nil
		}
		return file, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse %s: %w", path, err)
	}
	return file, nil
}

// WriteProjectFile stores file at path with owner-only permissions, and keeps
// the settings directory out of version control.
func WriteProjectFile(path string, file ProjectFile) error {
	if err := file.Validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}

	ignore := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignore); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(ignore, []byte("*\n"), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", ignore, err)
		}
	}
	return nil
}
