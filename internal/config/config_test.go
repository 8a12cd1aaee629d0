package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Fatalf("expected default max size %d, got %d", DefaultMaxFileSize, cfg.MaxFileSize)
	}
	if cfg.Categories["meme"] != "memes" {
		t.Fatalf("expected default meme category, got %v", cfg.Categories)
	}
	if cfg.Remote.Workers != DefaultRemoteWorkers {
		t.Fatalf("expected %d remote workers, got %d", DefaultRemoteWorkers, cfg.Remote.Workers)
	}
}

func TestLoadFromOverrideDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)

	content := `
data_dir = "/srv/stash"
max_file_size = 2097152

[categories]
meme = "memes"
reaction = "reactions"

[remote]
base_url = "https://boo.ru"
interval_ms = 500
`
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/srv/stash" {
		t.Fatalf("expected data dir from file, got %q", cfg.DataDir)
	}
	if cfg.MaxFileSize != 2097152 {
		t.Fatalf("expected max size from file, got %d", cfg.MaxFileSize)
	}
	if cfg.DBPath != filepath.Join("/srv/stash", DefaultDBFileName) {
		t.Fatalf("expected db path under data dir, got %q", cfg.DBPath)
	}
	if cfg.Remote.BaseURL != "https://boo.ru" {
		t.Fatalf("expected remote base url, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.Interval() != 500*time.Millisecond {
		t.Fatalf("expected 500ms interval, got %v", cfg.Remote.Interval())
	}
	if cfg.Categories["reaction"] != "reactions" {
		t.Fatalf("expected extra category, got %v", cfg.Categories)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(configDirEnvKey, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Fatalf("expected defaults, got %d", cfg.MaxFileSize)
	}
	if cfg.DBPath == "" || cfg.ConvertedDir == "" {
		t.Fatal("expected derived paths to be filled in")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(configDirEnvKey, t.TempDir())
	t.Setenv("MEDIASTASH_DB", "/tmp/override.db")
	t.Setenv("MEDIASTASH_API_USERNAME", "envuser")
	t.Setenv("MEDIASTASH_API_KEY", "envkey")
	t.Setenv("MEDIASTASH_API_USER_AGENT", "env-agent/1")
	t.Setenv("MEDIASTASH_API_BASE_URL", "https://env.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.Remote.Username != "envuser" || cfg.Remote.APIKey != "envkey" {
		t.Fatalf("expected env credentials, got %q/%q", cfg.Remote.Username, cfg.Remote.APIKey)
	}
	if cfg.Remote.UserAgent != "env-agent/1" {
		t.Fatalf("expected env user agent, got %q", cfg.Remote.UserAgent)
	}
	if cfg.Remote.BaseURL != "https://env.example" {
		t.Fatalf("expected env base url, got %q", cfg.Remote.BaseURL)
	}
}

func TestSetKeyRoundtrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	path := filepath.Join(dir, configFileName)

	if err := SetKey(path, "max_file_size", "8388608"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetKey(path, "remote.base_url", "https://boo.ru"); err != nil {
		t.Fatalf("set nested: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxFileSize != 8388608 {
		t.Fatalf("expected written size, got %d", cfg.MaxFileSize)
	}
	if cfg.Remote.BaseURL != "https://boo.ru" {
		t.Fatalf("expected written base url, got %q", cfg.Remote.BaseURL)
	}
}

func TestSetKeyRejectsUnknownAndInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)

	if err := SetKey(path, "no_such_key", "1"); err == nil {
		t.Fatal("expected unknown key error")
	}
	if err := SetKey(path, "max_file_size", "-5"); err == nil {
		t.Fatal("expected error for non-positive size")
	}
	if err := SetKey(path, "sync_workers", "abc"); err == nil {
		t.Fatal("expected error for non-numeric workers")
	}
}

func TestCategoryDirs(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/srv/stash"
	cfg.Categories = map[string]string{
		"meme": "memes",
		"abs":  "/mnt/elsewhere",
	}

	dirs := cfg.CategoryDirs()
	if dirs["meme"] != filepath.Join("/srv/stash", "memes") {
		t.Fatalf("expected relative dir under data dir, got %q", dirs["meme"])
	}
	if dirs["abs"] != "/mnt/elsewhere" {
		t.Fatalf("expected absolute dir untouched, got %q", dirs["abs"])
	}
}

func TestGetKnownKeys(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/srv/stash"

	for _, key := range AllowedKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
	}
	if _, err := cfg.Get("bogus"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}
