package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Address    *string      `yaml:"address"`
	Client     *fileClient  `yaml:"client"`
	Daemon     *fileDaemon  `yaml:"daemon"`
	Scripts    *fileScripts `yaml:"scripts"`
	Vars       *fileVars    `yaml:"vars"`
	SearchPath []string     `yaml:"search_path"`
	Metrics    *fileMetrics `yaml:"metrics"`
	Log        *fileLog     `yaml:"log"`
}

type fileClient struct {
	PreferLocal *bool `yaml:"prefer_local"`
}

type fileDaemon struct {
	WaitForExit *bool `yaml:"wait_for_exit"`
}

type fileScripts struct {
	Dir *string `yaml:"dir"`
}

type fileVars struct {
	Backend *string    `yaml:"backend"`
	Path    *string    `yaml:"path"`
	Redis   *fileRedis `yaml:"redis"`
}

type fileRedis struct {
	Addr     *string `yaml:"addr"`
	Password *string `yaml:"password"`
	DB       *int    `yaml:"db"`
	Key      *string `yaml:"key"`
}

type fileMetrics struct {
	Address *string `yaml:"address"`
}

type fileLog struct {
	Level *string `yaml:"level"`
}

// Parse reads YAML configuration content over base. Keys absent from content
// keep their base values; unknown keys are rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	if strings.TrimSpace(content) != "" {
		decoder := yaml.NewDecoder(strings.NewReader(content))
		decoder.KnownFields(true)

		var payload fileConfig
		if err := decoder.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, nil, fmt.Errorf("decode yaml: %w", err)
		}
		payload.applyTo(&cfg)
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload fileConfig) applyTo(cfg *Config) {
	if payload.Address != nil {
		cfg.Address = strings.TrimSpace(*payload.Address)
	}
	if payload.Client != nil && payload.Client.PreferLocal != nil {
		cfg.Client.PreferLocal = *payload.Client.PreferLocal
	}
	if payload.Daemon != nil && payload.Daemon.WaitForExit != nil {
		cfg.Daemon.WaitForExit = *payload.Daemon.WaitForExit
	}
	if payload.Scripts != nil && payload.Scripts.Dir != nil {
		cfg.Scripts.Dir = expandHome(*payload.Scripts.Dir)
	}

	if payload.Vars != nil {
		if payload.Vars.Backend != nil {
			cfg.Vars.Backend = strings.ToLower(strings.TrimSpace(*payload.Vars.Backend))
		}
		if payload.Vars.Path != nil {
			cfg.Vars.Path = expandHome(*payload.Vars.Path)
		}
		if r := payload.Vars.Redis; r != nil {
			if r.Addr != nil {
				cfg.Vars.Redis.Addr = strings.TrimSpace(*r.Addr)
			}
			if r.Password != nil {
				cfg.Vars.Redis.Password = *r.Password
			}
			if r.DB != nil {
				cfg.Vars.Redis.DB = *r.DB
			}
			if r.Key != nil {
				cfg.Vars.Redis.Key = strings.TrimSpace(*r.Key)
			}
		}
	}

	if payload.SearchPath != nil {
		paths := make([]string, 0, len(payload.SearchPath))
		for _, p := range payload.SearchPath {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, expandHome(p))
			}
		}
		cfg.SearchPath = paths
	}

	if payload.Metrics != nil && payload.Metrics.Address != nil {
		cfg.Metrics.Address = strings.TrimSpace(*payload.Metrics.Address)
	}
	if payload.Log != nil && payload.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
	}
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
