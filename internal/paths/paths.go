// Package paths resolves the configuration and data directories of the
// metafields CLI.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName is the directory name used under the platform base directories.
const appName = "metafields"

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".metafields"
	DefaultDataDirName   = ".metafields-db"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "METAFIELDS_CONFIG_DIR"
	EnvDataDir   = "METAFIELDS_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/metafields (fallback ~/.config/metafields)
// macOS:   ~/Library/Application Support/metafields
// Windows: %APPDATA%/metafields
func DefaultConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/metafields (fallback ~/.local/share/metafields)
// macOS and Windows: same as DefaultConfigDir
func DefaultDataDir() (string, error) {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

func appDir(xdgEnv string, homeFallback ...string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	parts := append([]string{home}, homeFallback...)
	return filepath.Join(append(parts, appName)...), nil
}

// ResolveConfigDir returns the configuration directory: flag, then
// METAFIELDS_CONFIG_DIR, then DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory: flag, then the data_dir value
// of config.yaml, then METAFIELDS_DATA_DIR, then $(CWD)/.metafields-db.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	for _, v := range []string{flag, configYAMLValue, os.Getenv(EnvDataDir)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ResolveRelative makes every relative path in files relative to base.
// Absolute paths are returned unchanged.
func ResolveRelative(base string, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		if filepath.IsAbs(f) {
			out[i] = f
			continue
		}
		out[i] = filepath.Join(base, f)
	}
	return out
}
