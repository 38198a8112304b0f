package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves and reads config.yaml. Without a file, wydy still runs on the
// XDG defaults, which are validated like any parsed file.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return loadDefaults(path)
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return Loaded{Path: path, Config: cfg, Warnings: warnings, Exists: true}, nil
}

func loadDefaults(path string) (Loaded, error) {
	cfg := Default()
	warnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("default config (no file at %q): %w", path, err)
	}

	missing := Warning{Message: fmt.Sprintf(
		"config file %q not found; using defaults (address %s, scripts in %s)",
		path, cfg.Address, cfg.Scripts.Dir,
	)}
	return Loaded{
		Path:     path,
		Config:   cfg,
		Warnings: append([]Warning{missing}, warnings...),
	}, nil
}
