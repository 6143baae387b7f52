package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Feed backends used with the redis store.
const (
	FeedLocal = "local"
	FeedNATS  = "nats"
)

// Config represents the global ~/.friendzone/config.toml.
type Config struct {
	DefaultProfile string      `toml:"default_profile"`
	Store          StoreConfig `toml:"store"`
	Feed           FeedConfig  `toml:"feed"`
	Blob           BlobConfig  `toml:"blob"`
	HTTP           HTTPConfig  `toml:"http"`
	GRPC           GRPCConfig  `toml:"grpc"`
}

// StoreConfig selects and tunes the Real-Time Store backend.
type StoreConfig struct {
	Backend      string   `toml:"backend"`
	SQLitePath   string   `toml:"sqlite_path"`
	RedisURL     string   `toml:"redis_url"`
	RedisPrefix  string   `toml:"redis_prefix"`
	PollInterval Duration `toml:"poll_interval"`
}

// FeedConfig selects how change events travel between processes.
type FeedConfig struct {
	Backend string `toml:"backend"`
	NATSURL string `toml:"nats_url"`
}

// BlobConfig locates the attachment store.
type BlobConfig struct {
	Dir     string `toml:"dir"`
	BaseURL string `toml:"base_url"`
}

// HTTPConfig is the blob/metrics listener.
type HTTPConfig struct {
	Listen string `toml:"listen"`
}

// GRPCConfig tunes the daemon's control socket.
type GRPCConfig struct {
	MaxMessageBytes int `toml:"max_message_bytes"`
}

// Profile represents a per-profile profile.toml: the identity handed to us
// by the auth collaborator.
type Profile struct {
	User UserConfig        `toml:"user"`
	HTTP ProfileHTTPConfig `toml:"http"`
}

// ProfileHTTPConfig gives a profile its own blob/metrics listener so several
// profiles can run on one host. Empty fields fall back to config.toml.
type ProfileHTTPConfig struct {
	Listen  string `toml:"listen"`
	BaseURL string `toml:"base_url"`
}

// UserConfig is the current user as known to this device.
type UserConfig struct {
	ID       string `toml:"id"`
	Username string `toml:"username"`
	Avatar   string `toml:"avatar"`
	Email    string `toml:"email"`
	Token    string `toml:"token"`
}

// Duration decodes TOML strings such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists. Paths are
// relative to baseDir.
func Default(baseDir string) *Config {
	return &Config{
		Store: StoreConfig{
			Backend:      BackendSQLite,
			SQLitePath:   filepath.Join(baseDir, "hub.db"),
			RedisURL:     "redis://localhost:6379/0",
			RedisPrefix:  "fz:",
			PollInterval: Duration{250 * time.Millisecond},
		},
		Feed: FeedConfig{
			Backend: FeedLocal,
			NATSURL: "nats://localhost:4222",
		},
		Blob: BlobConfig{
			Dir:     filepath.Join(baseDir, "blobs"),
			BaseURL: "http://127.0.0.1:8787/blobs",
		},
		HTTP: HTTPConfig{Listen: "127.0.0.1:8787"},
		GRPC: GRPCConfig{MaxMessageBytes: 16 << 20},
	}
}

// Load reads config from the given path. Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads config from path, falling back to defaults when the
// file does not exist, then applies environment overrides.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(filepath.Dir(path)), nil
	}
	if err != nil {
		return nil, err
	}
	// A missing .env is the common case.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FRIENDZONE_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("FRIENDZONE_REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv("FRIENDZONE_NATS_URL"); v != "" {
		c.Feed.NATSURL = v
		c.Feed.Backend = FeedNATS
	}
	if v := os.Getenv("FRIENDZONE_HTTP_LISTEN"); v != "" {
		c.HTTP.Listen = v
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	return writeTOML(path, cfg)
}

// HTTPEndpoint returns the listen address and blob base URL for p. A
// profile listen address without a base URL serves blobs from that address.
func (p *Profile) HTTPEndpoint(cfg *Config) (listen, baseURL string) {
	listen, baseURL = cfg.HTTP.Listen, cfg.Blob.BaseURL
	if p.HTTP.Listen != "" {
		listen = p.HTTP.Listen
		baseURL = "http://" + p.HTTP.Listen + "/blobs"
	}
	if p.HTTP.BaseURL != "" {
		baseURL = p.HTTP.BaseURL
	}
	return listen, baseURL
}

// LoadProfile reads a profile.toml.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile writes a profile.toml with owner-only permissions.
func SaveProfile(path string, p *Profile) error {
	return writeTOML(path, p)
}

func writeTOML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
