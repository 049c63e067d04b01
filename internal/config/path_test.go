package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDataDirPrefersXDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("HOME is not consulted on windows")
	}
	xdg := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", xdg)

	assert.Equal(t, filepath.Join(xdg, "drumbeat"), DefaultDataDir())
}

func TestDefaultDataDirWithoutHome(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("home lookup does not use HOME here")
	}
	t.Setenv("HOME", "")
	assert.Equal(t, "./data", DefaultDataDir())
}

func TestDefaultDataDirIsStable(t *testing.T) {
	dir := DefaultDataDir()
	require.NotEmpty(t, dir)
	assert.Equal(t, dir, DefaultDataDir())
	if dir != "./data" {
		assert.True(t, filepath.IsAbs(dir), dir)
		assert.Contains(t, []string{"drumbeat", "Drumbeat", ".drumbeat"}, filepath.Base(dir))
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	assert.True(t, isDir(dir))
	assert.False(t, isDir(file))
	assert.False(t, isDir(filepath.Join(dir, "missing")))
}

func TestStoreDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/srv/drumbeat"
	assert.Equal(t, "/srv/drumbeat", cfg.StoreDir())

	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "/xdg")
	cfg.Storage.DataDir = ""
	if runtime.GOOS != "windows" {
		assert.Equal(t, filepath.Join("/xdg", "drumbeat", "store"), cfg.StoreDir())
	}
	assert.Equal(t, "store", filepath.Base(cfg.StoreDir()))
}
