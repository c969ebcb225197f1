package keys

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	requiredPrefix = "sk-"
	minKeyLength   = 20
)

// Store holds the single OpenAI API credential. The file on disk is the
// source of truth: every read goes back to storage so that independently
// constructed stores pointing at the same config dir never serve stale
// values. Absence and invalidity are reported through IsValid, not errors.
type Store struct {
	configDir string
	diag      io.Writer

	// cached last-read value, refreshed on every Get
	current string
}

type keyFile struct {
	APIKey string `json:"api_key"`
}

// NewStore creates a key store rooted at the platform config directory.
func NewStore() (*Store, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	return &Store{configDir: configDir, diag: io.Discard}, nil
}

// NewStoreWithDir creates a key store rooted at an explicit directory.
func NewStoreWithDir(dir string) *Store {
	return &Store{configDir: dir, diag: io.Discard}
}

// SetDiagnostics directs write-verification notes to w.
func (s *Store) SetDiagnostics(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	s.diag = w
}

// getConfigDir returns the platform-specific config directory
func getConfigDir() (string, error) {
	// Allow override for testing
	if testDir := os.Getenv("SNAPCAL_CONFIG_DIR"); testDir != "" {
		return testDir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "snapcal"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "snapcal"), nil
	default: // linux and others
		// Follow XDG Base Directory Specification
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "snapcal"), nil
	}
}

// Path returns the path to the keys.json file
func (s *Store) Path() string {
	return filepath.Join(s.configDir, "keys.json")
}

// load reads the credential from disk. A missing or unreadable file is an
// absent credential, not an error.
func (s *Store) load() string {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return ""
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return ""
	}
	return kf.APIKey
}

// Set persists the credential. An empty value removes the stored entry
// rather than storing an empty string. After writing, the store reads the
// file back and reports any divergence on the diagnostics writer; the
// operation itself does not fail on mismatch.
func (s *Store) Set(value string) error {
	s.current = value

	if value == "" {
		if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove key file: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keyFile{APIKey: value}, "", "  ")
	if err != nil {
		return err
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write keys.json: %w", err)
	}

	if readBack := s.load(); readBack != value {
		fmt.Fprintf(s.diag, "warning: key verification mismatch after save (stored %d chars, read %d)\n",
			len(value), len(readBack))
	}
	return nil
}

// Get returns the credential, re-reading storage and re-synchronizing the
// in-memory cache if the file has changed underneath us.
func (s *Store) Get() string {
	fresh := s.load()
	if fresh != s.current {
		s.current = fresh
	}
	return s.current
}

// IsValid reports whether the current credential looks usable: non-empty,
// "sk-" prefixed, and at least 20 characters.
func (s *Store) IsValid() bool {
	return Valid(s.Get())
}

// Clear removes the stored credential.
func (s *Store) Clear() error {
	return s.Set("")
}

// Valid reports whether key has the expected credential shape.
func Valid(key string) bool {
	return key != "" && strings.HasPrefix(key, requiredPrefix) && len(key) >= minKeyLength
}

// MaskKey returns a masked version of the key for display
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// GetAPIKey resolves the credential using the priority order:
// 1. Explicit key passed as argument (if non-empty)
// 2. Stored key in keys.json
// 3. Environment variable
func GetAPIKey(explicitKey, envVar string, getenv func(string) string) (string, string) {
	if explicitKey != "" {
		return explicitKey, "command-line flag"
	}

	if store, err := NewStore(); err == nil {
		if stored := store.Get(); stored != "" {
			return stored, "stored key (keys.json)"
		}
	}

	if envKey := getenv(envVar); envKey != "" {
		return envKey, fmt.Sprintf("environment variable (%s)", envVar)
	}

	return "", ""
}
