package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/rbright/wydy/internal/ipc"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Address) == "" {
		return nil, fmt.Errorf("address must not be empty")
	}
	if _, err := ipc.ParseAddress(cfg.Address); err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}

	if strings.TrimSpace(cfg.Scripts.Dir) == "" {
		return nil, fmt.Errorf("scripts.dir must not be empty")
	}
	if !filepath.IsAbs(cfg.Scripts.Dir) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("scripts.dir %q is relative; it resolves against the working directory", cfg.Scripts.Dir)})
	}

	switch cfg.Vars.Backend {
	case VarsBackendFile:
		if strings.TrimSpace(cfg.Vars.Path) == "" {
			return nil, fmt.Errorf("vars.path must not be empty when vars.backend=file")
		}
	case VarsBackendRedis:
		if strings.TrimSpace(cfg.Vars.Redis.Addr) == "" {
			return nil, fmt.Errorf("vars.redis.addr must not be empty when vars.backend=redis")
		}
		if strings.TrimSpace(cfg.Vars.Redis.Key) == "" {
			return nil, fmt.Errorf("vars.redis.key must not be empty when vars.backend=redis")
		}
		if cfg.Vars.Redis.DB < 0 {
			return nil, fmt.Errorf("vars.redis.db must be >= 0")
		}
	default:
		return nil, fmt.Errorf("vars.backend must be one of: file, redis")
	}

	for _, dir := range cfg.SearchPath {
		if !filepath.IsAbs(dir) {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("search_path entry %q is relative", dir)})
		}
	}

	if addr := strings.TrimSpace(cfg.Metrics.Address); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("metrics.address: %w", err)
		}
		if addr == strings.TrimSpace(cfg.Address) {
			return nil, fmt.Errorf("metrics.address must differ from address")
		}
	}

	if !logLevels[cfg.Log.Level] {
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
