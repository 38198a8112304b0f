package config

import "path/filepath"

const DefaultAddress = "127.0.0.1:7878"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Address: DefaultAddress,
		Client:  ClientConfig{PreferLocal: true},
		Daemon:  DaemonConfig{WaitForExit: false},
		Scripts: ScriptsConfig{Dir: dataPath("scripts")},
		Vars: VarsConfig{
			Backend: VarsBackendFile,
			Path:    configPath("vars.yaml"),
			Redis: RedisConfig{
				Addr: "127.0.0.1:6379",
				Key:  "wydy:vars",
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

func dataPath(name string) string {
	base, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return ""
	}
	return filepath.Join(base, "wydy", name)
}

func configPath(name string) string {
	base, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return ""
	}
	return filepath.Join(base, "wydy", name)
}
