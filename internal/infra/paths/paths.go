// Package paths resolves the application's config, cache, state and runtime
// directories, honoring the systemd-provided directory variables first and
// falling back to the XDG base directory spec.
package paths

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// ApplicationName is the directory name used under the XDG base directories.
const ApplicationName = "trackwarden"

// ConfigDir returns the directory holding blocked_songs.conf and the
// daemon configuration.
func ConfigDir() (string, error) {
	// CONFIGURATION_DIRECTORY is set when running under systemd with
	// ConfigurationDirectory= configured.
	if dir := os.Getenv("CONFIGURATION_DIRECTORY"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, ApplicationName), nil
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ApplicationName), nil
	}
	return "", errors.New("none of CONFIGURATION_DIRECTORY, XDG_CONFIG_HOME or HOME is set")
}

// CacheDir returns the directory holding the deny-list cache files.
func CacheDir() (string, error) {
	if dir := os.Getenv("CACHE_DIRECTORY"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, ApplicationName), nil
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".cache", ApplicationName), nil
	}
	return "", errors.New("none of CACHE_DIRECTORY, XDG_CACHE_HOME or HOME is set")
}

// StateDir returns the directory holding the persisted OAuth token.
func StateDir() (string, error) {
	if dir := os.Getenv("STATE_DIRECTORY"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, ApplicationName), nil
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "state", ApplicationName), nil
	}
	return "", errors.New("none of STATE_DIRECTORY, XDG_STATE_HOME or HOME is set")
}

// RuntimeDir returns the directory holding the command socket.
func RuntimeDir() (string, error) {
	if dir := os.Getenv("RUNTIME_DIRECTORY"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, ApplicationName), nil
	}
	return "", errors.New("neither RUNTIME_DIRECTORY nor XDG_RUNTIME_DIR is set")
}
