package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultDBFileName  = ".mediastash.db"
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultLogLevel    = "info"

	DefaultRemoteWorkers         = 4
	DefaultRemoteMaxInFlight     = 2
	DefaultRemoteIntervalMillis  = 1000
	DefaultRemoteQueueSize       = 32
	DefaultSyncWorkers           = 4
	defaultRemoteUserAgentSuffix = "mediastash/1.0"

	configDirEnvKey = "MEDIASTASH_CONFIG_DIR"
	configFileName  = ".mediastash.toml"
)

// RemoteConfig defines the remote content API connection.
type RemoteConfig struct {
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	APIKey         string `toml:"api_key"`
	UserAgent      string `toml:"user_agent"`
	Workers        int    `toml:"workers"`
	MaxInFlight    int64  `toml:"max_in_flight"`
	IntervalMillis int    `toml:"interval_ms"`
	QueueSize      int    `toml:"queue_size"`
}

// Interval returns the minimum spacing between remote requests.
func (r RemoteConfig) Interval() time.Duration {
	if r.IntervalMillis <= 0 {
		return DefaultRemoteIntervalMillis * time.Millisecond
	}
	return time.Duration(r.IntervalMillis) * time.Millisecond
}

// Config defines runtime configuration for mediastash.
type Config struct {
	DataDir      string            `toml:"data_dir"`
	DBPath       string            `toml:"db_path"`
	ConvertedDir string            `toml:"converted_dir"`
	MaxFileSize  int64             `toml:"max_file_size"`
	SyncWorkers  int               `toml:"sync_workers"`
	LogLevel     string            `toml:"log_level"`
	Categories   map[string]string `toml:"categories"`
	Remote       RemoteConfig      `toml:"remote"`
}

// Default returns default configuration values. Paths stay empty here;
// Load resolves them against the data directory.
func Default() Config {
	return Config{
		MaxFileSize: DefaultMaxFileSize,
		SyncWorkers: DefaultSyncWorkers,
		Categories: map[string]string{
			"meme":    "memes",
			"private": "private",
		},
		Remote: RemoteConfig{
			UserAgent:      defaultRemoteUserAgentSuffix,
			Workers:        DefaultRemoteWorkers,
			MaxInFlight:    DefaultRemoteMaxInFlight,
			IntervalMillis: DefaultRemoteIntervalMillis,
			QueueSize:      DefaultRemoteQueueSize,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

var allowedKeys = []string{
	"data_dir",
	"db_path",
	"converted_dir",
	"max_file_size",
	"sync_workers",
	"log_level",
	"remote.base_url",
	"remote.username",
	"remote.api_key",
	"remote.user_agent",
	"remote.workers",
	"remote.max_in_flight",
	"remote.interval_ms",
	"remote.queue_size",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "data_dir":
		return c.DataDir, nil
	case "db_path":
		return c.DBPath, nil
	case "converted_dir":
		return c.ConvertedDir, nil
	case "max_file_size":
		return strconv.FormatInt(c.MaxFileSize, 10), nil
	case "sync_workers":
		return strconv.Itoa(c.SyncWorkers), nil
	case "log_level":
		return c.LogLevel, nil
	case "remote.base_url":
		return c.Remote.BaseURL, nil
	case "remote.username":
		return c.Remote.Username, nil
	case "remote.api_key":
		return c.Remote.APIKey, nil
	case "remote.user_agent":
		return c.Remote.UserAgent, nil
	case "remote.workers":
		return strconv.Itoa(c.Remote.Workers), nil
	case "remote.max_in_flight":
		return strconv.FormatInt(c.Remote.MaxInFlight, 10), nil
	case "remote.interval_ms":
		return strconv.Itoa(c.Remote.IntervalMillis), nil
	case "remote.queue_size":
		return strconv.Itoa(c.Remote.QueueSize), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from the global file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		if _, err := loadFileIfExists(filepath.Join(home, configFileName), &cfg); err != nil {
			return nil, err
		}
	}

	if cfg.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = filepath.Join(home, "mediastash")
		}
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, DefaultDBFileName)
	}
	if cfg.ConvertedDir == "" {
		cfg.ConvertedDir = filepath.Join(cfg.DataDir, "converted")
	}

	if dbPath := os.Getenv("MEDIASTASH_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if v := os.Getenv("MEDIASTASH_API_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("MEDIASTASH_API_USERNAME"); v != "" {
		cfg.Remote.Username = v
	}
	if v := os.Getenv("MEDIASTASH_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := os.Getenv("MEDIASTASH_API_USER_AGENT"); v != "" {
		cfg.Remote.UserAgent = v
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

// CategoryDirs resolves configured category directories, rooting
// relative entries under the data directory.
func (c *Config) CategoryDirs() map[string]string {
	out := make(map[string]string, len(c.Categories))
	for name, dir := range c.Categories {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.DataDir, dir)
		}
		out[name] = dir
	}
	return out
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "max_file_size":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "sync_workers", "remote.workers", "remote.interval_ms", "remote.queue_size":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "remote.max_in_flight":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.SyncWorkers <= 0 {
		c.SyncWorkers = DefaultSyncWorkers
	}
	if len(c.Categories) == 0 {
		c.Categories = Default().Categories
	}
	if c.Remote.Workers <= 0 {
		c.Remote.Workers = DefaultRemoteWorkers
	}
	if c.Remote.MaxInFlight <= 0 {
		c.Remote.MaxInFlight = DefaultRemoteMaxInFlight
	}
	if c.Remote.IntervalMillis <= 0 {
		c.Remote.IntervalMillis = DefaultRemoteIntervalMillis
	}
	if c.Remote.QueueSize <= 0 {
		c.Remote.QueueSize = DefaultRemoteQueueSize
	}
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = defaultRemoteUserAgentSuffix
	}
}
