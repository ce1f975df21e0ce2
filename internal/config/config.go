package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"
)

// Default tunables. The RPC timeout bounds every per-instance editor call.
const (
	DefaultSocketDir  = "/tmp"
	DefaultRPCTimeout = 2 * time.Second
)

// Config holds the sidekick runtime configuration.
type Config struct {
	// SocketDir is where editor instance sockets live.
	SocketDir string `json:"socket_dir,omitempty"`
	// RPCTimeoutMS bounds each per-instance editor call, in milliseconds.
	RPCTimeoutMS int `json:"rpc_timeout_ms,omitempty"`
	// LogLevel is the minimum log level (DEBUG|INFO|WARN|ERROR).
	LogLevel string `json:"log_level,omitempty"`
	// LogFile overrides the default hook log location.
	LogFile string `json:"log_file,omitempty"`
	// NotifyOnDeny controls whether a denied edit raises an editor
	// notification. Defaults to true.
	NotifyOnDeny *bool `json:"notify_on_deny,omitempty"`
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/sidekick/)
// 2. Project config (<directory>/.sidekick/)
// 3. SIDEKICK_CONFIG file
// 4. Environment variables
//
// Missing files are skipped; a file that exists but fails to parse is
// skipped too. Configuration is a convenience layer and never blocks a
// hook invocation.
func Load(directory string) *Config {
	cfg := &Config{}

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return
		}
		if loadConfigFile(absPath, cfg) == nil {
			loaded[absPath] = true
		}
	}

	globalDir := GetPaths().Config
	loadOnce(filepath.Join(globalDir, "sidekick.json"))
	loadOnce(filepath.Join(globalDir, "sidekick.jsonc"))

	if directory != "" {
		loadOnce(filepath.Join(directory, ".sidekick", "sidekick.json"))
		loadOnce(filepath.Join(directory, ".sidekick", "sidekick.jsonc"))
	}

	if path := os.Getenv("SIDEKICK_CONFIG"); path != "" {
		loadOnce(path)
	}

	applyEnvOverrides(cfg)
	return cfg
}

// loadConfigFile loads a single JSONC config file into cfg.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &fileCfg); err != nil {
		return err
	}
	mergeConfig(cfg, &fileCfg)
	return nil
}

// mergeConfig overlays src onto dst, later sources win.
func mergeConfig(dst, src *Config) {
	if src.SocketDir != "" {
		dst.SocketDir = src.SocketDir
	}
	if src.RPCTimeoutMS > 0 {
		dst.RPCTimeoutMS = src.RPCTimeoutMS
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
	if src.NotifyOnDeny != nil {
		dst.NotifyOnDeny = src.NotifyOnDeny
	}
}

// applyEnvOverrides applies SIDEKICK_* environment variables (highest priority).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIDEKICK_SOCKET_DIR"); v != "" {
		cfg.SocketDir = v
	}
	if v := os.Getenv("SIDEKICK_RPC_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.RPCTimeoutMS = ms
		}
	}
	if v := os.Getenv("SIDEKICK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SIDEKICK_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

// ResolvedSocketDir returns the configured socket directory or the default.
func (c *Config) ResolvedSocketDir() string {
	if c.SocketDir != "" {
		return c.SocketDir
	}
	return DefaultSocketDir
}

// RPCTimeout returns the per-instance call timeout.
func (c *Config) RPCTimeout() time.Duration {
	if c.RPCTimeoutMS > 0 {
		return time.Duration(c.RPCTimeoutMS) * time.Millisecond
	}
	return DefaultRPCTimeout
}

// ResolvedLogFile returns the configured log file or the default location.
func (c *Config) ResolvedLogFile() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return GetPaths().LogPath()
}

// ShouldNotifyOnDeny reports whether denied edits raise an editor notification.
func (c *Config) ShouldNotifyOnDeny() bool {
	if c.NotifyOnDeny == nil {
		return true
	}
	return *c.NotifyOnDeny
}
