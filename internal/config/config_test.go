package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default(tmpDir)
	cfg.DefaultProfile = "work"
	cfg.Store.Backend = BackendRedis
	cfg.Store.PollInterval = Duration{time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Store.Backend != BackendRedis {
		t.Errorf("Store.Backend = %q, want redis", loaded.Store.Backend)
	}
	if loaded.Store.PollInterval.Duration != time.Second {
		t.Errorf("PollInterval = %v, want 1s", loaded.Store.PollInterval)
	}
}

func TestLoadKeepsDefaultsForOmittedKeys(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte("default_profile = \"alt\"\n[store]\npoll_interval = \"50ms\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want sqlite default", cfg.Store.Backend)
	}
	if cfg.Store.PollInterval.Duration != 50*time.Millisecond {
		t.Errorf("PollInterval = %v, want 50ms", cfg.Store.PollInterval)
	}
	if cfg.Store.SQLitePath != filepath.Join(tmpDir, "hub.db") {
		t.Errorf("SQLitePath = %q, want under %q", cfg.Store.SQLitePath, tmpDir)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	t.Setenv("FRIENDZONE_STORE_BACKEND", "")
	t.Setenv("FRIENDZONE_NATS_URL", "")
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Feed.Backend != FeedLocal {
		t.Errorf("Feed.Backend = %q, want local", cfg.Feed.Backend)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FRIENDZONE_STORE_BACKEND", BackendMemory)
	t.Setenv("FRIENDZONE_NATS_URL", "nats://example:4222")
	t.Setenv("FRIENDZONE_HTTP_LISTEN", "127.0.0.1:9999")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Feed.Backend != FeedNATS || cfg.Feed.NATSURL != "nats://example:4222" {
		t.Errorf("Feed = %+v, want nats override", cfg.Feed)
	}
	if cfg.HTTP.Listen != "127.0.0.1:9999" {
		t.Errorf("HTTP.Listen = %q", cfg.HTTP.Listen)
	}
}

func TestProfileRoundTripPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p", "profile.toml")

	p := &Profile{
		User: UserConfig{ID: "u1", Username: "ada", Token: "secret"},
		HTTP: ProfileHTTPConfig{Listen: "127.0.0.1:8791"},
	}
	if err := SaveProfile(path, p); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}

	loaded, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.User.ID != "u1" || loaded.User.Username != "ada" {
		t.Errorf("user = %+v", loaded.User)
	}
	if loaded.HTTP.Listen != "127.0.0.1:8791" {
		t.Errorf("http listen = %q", loaded.HTTP.Listen)
	}
}

func TestProfileHTTPEndpoint(t *testing.T) {
	cfg := Default(t.TempDir())

	tests := []struct {
		name        string
		http        ProfileHTTPConfig
		wantListen  string
		wantBaseURL string
	}{
		{"global", ProfileHTTPConfig{}, "127.0.0.1:8787", "http://127.0.0.1:8787/blobs"},
		{"profile listen", ProfileHTTPConfig{Listen: "127.0.0.1:8790"}, "127.0.0.1:8790", "http://127.0.0.1:8790/blobs"},
		{"explicit base url", ProfileHTTPConfig{Listen: "0.0.0.0:8790", BaseURL: "http://box:8790/blobs"}, "0.0.0.0:8790", "http://box:8790/blobs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Profile{HTTP: tt.http}
			listen, baseURL := p.HTTPEndpoint(cfg)
			if listen != tt.wantListen || baseURL != tt.wantBaseURL {
				t.Errorf("HTTPEndpoint() = %q, %q, want %q, %q", listen, baseURL, tt.wantListen, tt.wantBaseURL)
			}
		})
	}
}
