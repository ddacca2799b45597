// Package paths resolves where satchel keeps its configuration and data.
package paths

import (
	"os"
	"path/filepath"
)

// DefaultDataDirName is the directory created under the working directory
// when no data-dir override is active.
const DefaultDataDirName = ".satchel-db"

// Environment overrides, consulted after the flag (and, for data, the
// config file value).
const (
	EnvConfigDir = "SATCHEL_CONFIG_DIR"
	EnvDataDir   = "SATCHEL_DATA_DIR"
)

// userConfigDir is swapped out in tests; os.UserConfigDir already follows
// the platform convention (XDG on Linux, Application Support on macOS,
// %AppData% on Windows).
var userConfigDir = os.UserConfigDir

// ResolveConfigDir picks the configuration directory: flag, then
// SATCHEL_CONFIG_DIR, then a "satchel" directory under the platform config
// root. Flag and env values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	for _, dir := range []string{flag, os.Getenv(EnvConfigDir)} {
		if dir != "" {
			return filepath.Abs(dir)
		}
	}
	base, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "satchel"), nil
}

// ResolveDataDir picks the data directory: flag, then the config file value,
// then SATCHEL_DATA_DIR, then DefaultDataDirName under the working directory.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, dir := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if dir != "" {
			return filepath.Abs(dir)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}
