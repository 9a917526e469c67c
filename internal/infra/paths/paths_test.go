package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDirPrecedence(t *testing.T) {
	t.Setenv("CONFIGURATION_DIRECTORY", "/etc/trackwarden")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("HOME", "/home/user")

	dir, err := ConfigDir()
	assert.NoError(t, err)
	assert.Equal(t, "/etc/trackwarden", dir)

	t.Setenv("CONFIGURATION_DIRECTORY", "")
	dir, err = ConfigDir()
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg/config", ApplicationName), dir)

	t.Setenv("XDG_CONFIG_HOME", "")
	dir, err = ConfigDir()
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user", ".config", ApplicationName), dir)

	t.Setenv("HOME", "")
	_, err = ConfigDir()
	assert.Error(t, err)
}

func TestStateAndCacheDirs(t *testing.T) {
	t.Setenv("CONFIGURATION_DIRECTORY", "")
	t.Setenv("CACHE_DIRECTORY", "")
	t.Setenv("STATE_DIRECTORY", "")
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/user")

	cache, err := CacheDir()
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user", ".cache", ApplicationName), cache)

	state, err := StateDir()
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user", ".local", "state", ApplicationName), state)
}

func TestRuntimeDir(t *testing.T) {
	t.Setenv("RUNTIME_DIRECTORY", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	dir, err := RuntimeDir()
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("/run/user/1000", ApplicationName), dir)

	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err = RuntimeDir()
	assert.Error(t, err)
}
