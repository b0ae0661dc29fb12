package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitedb/graphdb/kvs"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, string(DefaultBackend), cfg.Backend)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Empty(t, cfg.Names())

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, level)
}

func TestLoadEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KITEDB_BACKEND", "bolt")
	t.Setenv("KITEDB_DATA_DIR", dir)
	t.Setenv("KITEDB_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.Backend)
	assert.Equal(t, dir, cfg.DataDir)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, level)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("KITEDB_BACKEND", "rocksdb")
	_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	assert.True(t, errors.Is(err, kvs.ErrUnknownBackend))
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KITEDB_DATA_DIR", dir)
	file := filepath.Join(dir, "conf", "config.yaml")

	cfg, err := Load(file)
	require.NoError(t, err)

	_, err = cfg.Register("Social", "bolt")
	require.NoError(t, err)
	_, err = cfg.Register("scratch", "memory")
	require.NoError(t, err)
	_, err = cfg.Register("inventory", "")
	require.NoError(t, err)

	_, err = cfg.Register("social", "badger")
	assert.True(t, errors.Is(err, ErrDatabaseExists))
	_, err = cfg.Register("bad", "rocksdb")
	assert.True(t, errors.Is(err, kvs.ErrUnknownBackend))
	_, err = cfg.Register("../escape", "bolt")
	assert.Error(t, err)

	reloaded, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory", "scratch", "social"}, reloaded.Names())

	backend, path, err := reloaded.Resolve("SOCIAL")
	require.NoError(t, err)
	assert.Equal(t, kvs.Bolt, backend)
	assert.Equal(t, filepath.Join(dir, "social.bolt"), path)

	backend, path, err = reloaded.Resolve("inventory")
	require.NoError(t, err)
	assert.Equal(t, kvs.Badger, backend)
	assert.Equal(t, filepath.Join(dir, "inventory"), path)

	backend, path, err = reloaded.Resolve("scratch")
	require.NoError(t, err)
	assert.Equal(t, kvs.Memory, backend)
	assert.Empty(t, path)

	_, err = reloaded.Unregister("scratch")
	require.NoError(t, err)
	_, _, err = reloaded.Resolve("scratch")
	assert.True(t, errors.Is(err, ErrUnknownDatabase))

	again, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory", "social"}, again.Names())
}

func TestUnregisterPersists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("log_level: warn\ndata_dir: "+dir+"\n"), 0644))

	cfg, err := Load(file)
	require.NoError(t, err)
	_, err = cfg.Register("a", "bolt")
	require.NoError(t, err)
	_, err = cfg.Register("b", "bolt")
	require.NoError(t, err)

	t.Setenv("KITEDB_BACKEND", "memory")
	reloaded, err := Load(file)
	require.NoError(t, err)
	_, err = reloaded.Unregister("a")
	require.NoError(t, err)

	t.Setenv("KITEDB_BACKEND", "")
	again, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, again.Names())
	assert.Equal(t, "warn", again.LogLevel)
	assert.Equal(t, dir, again.DataDir)
	assert.Equal(t, string(DefaultBackend), again.Backend, "env overrides are not written to the file")
}
