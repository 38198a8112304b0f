// Package config resolves, parses, validates, and defaults wydy configuration.
package config

// Config is the fully materialized runtime configuration shared by wydy and
// wydyd.
type Config struct {
	Address    string
	Client     ClientConfig
	Daemon     DaemonConfig
	Scripts    ScriptsConfig
	Vars       VarsConfig
	SearchPath []string
	Metrics    MetricsConfig
	Log        LogConfig
}

// ClientConfig controls requester behavior.
type ClientConfig struct {
	PreferLocal bool
}

// DaemonConfig controls responder behavior.
type DaemonConfig struct {
	WaitForExit bool
}

// ScriptsConfig locates the script directory.
type ScriptsConfig struct {
	Dir string
}

const (
	VarsBackendFile  = "file"
	VarsBackendRedis = "redis"
)

// VarsConfig selects where variables such as browser and editor live.
type VarsConfig struct {
	Backend string
	Path    string
	Redis   RedisConfig
}

// RedisConfig addresses the shared variable hash.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// MetricsConfig controls the optional metrics listener. Empty disables it.
type MetricsConfig struct {
	Address string
}

// LogConfig controls the runtime log level.
type LogConfig struct {
	Level string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
