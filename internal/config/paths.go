// Package config provides configuration loading and path management.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard paths for sidekick data.
type Paths struct {
	Config string // ~/.config/sidekick
	State  string // ~/.local/state/sidekick
	Cache  string // ~/.cache/sidekick
}

// GetPaths returns the standard paths for sidekick data.
func GetPaths() *Paths {
	return &Paths{
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "sidekick"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "sidekick"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "sidekick"),
	}
}

// LogPath returns the default hook log file location.
func (p *Paths) LogPath() string {
	return filepath.Join(p.State, "sidekick.log")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("LOCALAPPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}

func defaultCacheHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("LOCALAPPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}
