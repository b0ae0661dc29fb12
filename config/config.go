// Package config loads process configuration and keeps the registry of
// named databases.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"kitedb/graphdb/kvs"
)

const (
	EnvPrefix      = "KITEDB"
	DefaultFile    = "~/.kitedb/config.yaml"
	DefaultDataDir = "~/.kitedb/data"
	DefaultBackend = kvs.Badger
)

var (
	// ErrUnknownDatabase is returned for a database name that is not registered
	ErrUnknownDatabase = errors.New("unknown database")
	// ErrDatabaseExists is returned when registering a name twice
	ErrDatabaseExists = errors.New("database already exists")
)

// Database is one registry entry
type Database struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// Config is the resolved process configuration
type Config struct {
	DataDir   string              `mapstructure:"data_dir"`
	Backend   string              `mapstructure:"backend"`
	LogLevel  string              `mapstructure:"log_level"`
	Databases map[string]Database `mapstructure:"databases"`

	file string
	v    *viper.Viper
}

// Load reads the config file (a missing file is not an error) and KITEDB_*
// environment variables. An empty cfgFile means DefaultFile.
func Load(cfgFile string) (*Config, error) {
	log := logrus.WithField("component", "Config")

	if cfgFile == "" {
		cfgFile = DefaultFile
	}
	file, err := expandPath(cfgFile)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("backend", string(DefaultBackend))
	v.SetDefault("log_level", logrus.InfoLevel.String())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(file)
	v.SetConfigType("yaml")

	if _, err := os.Stat(file); err == nil {
		if err := v.ReadInConfig(); err != nil {
			log.WithError(err).WithField("file", file).Error("Failed to read config file")
			return nil, errors.Wrapf(err, "failed to read config file %s", file)
		}
		log.WithField("file", file).Debug("Config file loaded")
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to stat config file %s", file)
	}

	cfg := &Config{file: file, v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	if cfg.DataDir, err = expandPath(cfg.DataDir); err != nil {
		return nil, err
	}
	if cfg.Databases == nil {
		cfg.Databases = map[string]Database{}
	}
	if _, err := ParseBackend(cfg.Backend); err != nil {
		return nil, err
	}
	return cfg, nil
}

// File is the config file the registry is saved to
func (c *Config) File() string { return c.file }

// Level parses the configured log level
func (c *Config) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, errors.Wrapf(err, "invalid log_level %q", c.LogLevel)
	}
	return level, nil
}

// Names returns the registered database names in sorted order
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the backend and absolute storage path of a registered database
func (c *Config) Resolve(name string) (kvs.AdapterName, string, error) {
	db, ok := c.Databases[normalize(name)]
	if !ok {
		return "", "", errors.Wrapf(ErrUnknownDatabase, "%q", name)
	}
	backend, err := ParseBackend(db.Backend)
	if err != nil {
		return "", "", err
	}
	path := db.Path
	if path == "" {
		path = c.DefaultPath(backend, name)
	}
	if path != "" {
		if path, err = expandPath(path); err != nil {
			return "", "", err
		}
	}
	return backend, path, nil
}

// DefaultPath is where a database lives when its entry has no explicit path
func (c *Config) DefaultPath(backend kvs.AdapterName, name string) string {
	switch backend {
	case kvs.Bolt:
		return filepath.Join(c.DataDir, normalize(name)+".bolt")
	case kvs.Memory:
		return ""
	default:
		return filepath.Join(c.DataDir, normalize(name))
	}
}

// Register adds a database and saves the registry. An empty backend means
// the configured default.
func (c *Config) Register(name, backend string) (Database, error) {
	key := normalize(name)
	if key == "" || strings.ContainsAny(key, `/\.`) {
		return Database{}, errors.Errorf("invalid database name %q", name)
	}
	if _, ok := c.Databases[key]; ok {
		return Database{}, errors.Wrapf(ErrDatabaseExists, "%q", name)
	}
	if backend == "" {
		backend = c.Backend
	}
	adapter, err := ParseBackend(backend)
	if err != nil {
		return Database{}, err
	}

	db := Database{Backend: string(adapter), Path: c.DefaultPath(adapter, key)}
	c.Databases[key] = db
	if err := c.Save(); err != nil {
		delete(c.Databases, key)
		return Database{}, err
	}
	logrus.WithFields(logrus.Fields{
		"component": "Config",
		"database":  key,
		"backend":   adapter,
	}).Info("Database registered")
	return db, nil
}

// Unregister removes a database from the registry and saves it. Stored data
// is left to the caller.
func (c *Config) Unregister(name string) (Database, error) {
	key := normalize(name)
	db, ok := c.Databases[key]
	if !ok {
		return Database{}, errors.Wrapf(ErrUnknownDatabase, "%q", name)
	}
	delete(c.Databases, key)
	if err := c.Save(); err != nil {
		c.Databases[key] = db
		return Database{}, err
	}
	return db, nil
}

// Save writes the configuration, registry included, to File(). The file is
// rebuilt from scratch so entries dropped from the registry stay dropped.
func (c *Config) Save() error {
	out := viper.New()
	out.SetConfigType("yaml")
	settings := map[string]string{
		"data_dir":  c.DataDir,
		"backend":   c.Backend,
		"log_level": c.LogLevel,
	}
	for key, value := range settings {
		// keep what the file already had; defaults and env overrides stay out
		if c.v.InConfig(key) {
			out.Set(key, value)
		}
	}

	databases := make(map[string]interface{}, len(c.Databases))
	for name, db := range c.Databases {
		databases[name] = map[string]interface{}{
			"backend": db.Backend,
			"path":    db.Path,
		}
	}
	out.Set("databases", databases)

	if err := os.MkdirAll(filepath.Dir(c.file), 0755); err != nil {
		return errors.Wrapf(err, "failed to create config directory for %s", c.file)
	}
	if err := out.WriteConfigAs(c.file); err != nil {
		logrus.WithField("component", "Config").WithError(err).Error("Failed to write config file")
		return errors.Wrapf(err, "failed to write config file %s", c.file)
	}
	return nil
}

// ParseBackend validates a backend name
func ParseBackend(name string) (kvs.AdapterName, error) {
	adapter := kvs.AdapterName(strings.ToLower(strings.TrimSpace(name)))
	switch adapter {
	case kvs.Badger, kvs.Bolt, kvs.Memory:
		return adapter, nil
	}
	return "", errors.Wrapf(kvs.ErrUnknownBackend, "%q", name)
}

// viper lower-cases map keys, so registry names are case-insensitive
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func expandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to expand path %s", path)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve path %s", expanded)
	}
	return abs, nil
}
