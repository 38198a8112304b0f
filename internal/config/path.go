package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.yaml location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	base, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(base, "wydy", "config.yaml"), nil
}

// xdgDir returns $env, or $HOME/fallback when env is unset.
func xdgDir(env string, fallback string) (string, error) {
	if dir := strings.TrimSpace(os.Getenv(env)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback), nil
}
