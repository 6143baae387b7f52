package profile

import (
	"os"
	"path/filepath"
)

// baseDirOverride lets tests relocate the tree; empty means ~/.friendzone.
var baseDirOverride string

// BaseDir returns ~/.friendzone.
func BaseDir() string {
	if baseDirOverride != "" {
		return baseDirOverride
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".friendzone")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// SocketPath returns the UDS socket path for a profile's daemon.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "fzd.sock")
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// LocalDBPath returns the device-local cache database.
func LocalDBPath(name string) string {
	return filepath.Join(Dir(name), "local.db")
}

// ProfilePath returns the profile.toml holding the signed-in user.
func ProfilePath(name string) string {
	return filepath.Join(Dir(name), "profile.toml")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "fzd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
