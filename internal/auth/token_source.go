package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// TokenSource persists the signed-in token for the CLI between runs.
type TokenSource struct {
	Path string
}

// Load returns the stored token, or "" when signed out.
func (t *TokenSource) Load() (string, error) {
	data, err := os.ReadFile(t.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save stores a token with user-only permissions.
func (t *TokenSource) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(t.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(t.Path, []byte(token+"\n"), 0o600)
}

// Clear signs out.
func (t *TokenSource) Clear() error {
	err := os.Remove(t.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
