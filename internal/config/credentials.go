package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	apierrors "github.com/diogo/friendlychat/internal/errors"
)

// tokenExpirySkew treats a token as expired slightly before it actually is.
const tokenExpirySkew = time.Minute

// Credentials holds the signed-in user's tokens and profile
type Credentials struct {
	mu           sync.RWMutex `json:"-"` // Not serialized
	IDToken      string       `json:"id_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	UID          string       `json:"uid"`
	DisplayName  string       `json:"display_name,omitempty"`
	Email        string       `json:"email,omitempty"`
	Provider     string       `json:"provider"`
}

// CredentialsSnapshot is an immutable copy of Credentials.
type CredentialsSnapshot struct {
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UID          string    `json:"uid"`
	DisplayName  string    `json:"display_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Provider     string    `json:"provider"`
}

// NewCredentials creates Credentials from a snapshot
func NewCredentials(s CredentialsSnapshot) *Credentials {
	return &Credentials{
		IDToken:      s.IDToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		UID:          s.UID,
		DisplayName:  s.DisplayName,
		Email:        s.Email,
		Provider:     s.Provider,
	}
}

// GetIDToken returns the current ID token in a thread-safe manner
func (c *Credentials) GetIDToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.IDToken
}

// GetRefreshToken returns the refresh token in a thread-safe manner
func (c *Credentials) GetRefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RefreshToken
}

// Snapshot returns all fields atomically
func (c *Credentials) Snapshot() CredentialsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CredentialsSnapshot{
		IDToken:      c.IDToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
		UID:          c.UID,
		DisplayName:  c.DisplayName,
		Email:        c.Email,
		Provider:     c.Provider,
	}
}

// UpdateTokens replaces both tokens atomically. expiresIn is relative to now.
func (c *Credentials) UpdateTokens(idToken, refreshToken string, expiresIn time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.IDToken = idToken
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	c.ExpiresAt = time.Now().Add(expiresIn)
}

// SetDisplayName updates the profile name (thread-safe)
func (c *Credentials) SetDisplayName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DisplayName = name
}

// Expired reports whether the ID token is expired or about to expire
func (c *Credentials) Expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ExpiresAt.IsZero() || time.Now().Add(tokenExpirySkew).After(c.ExpiresAt)
}

// ValidateCredentials checks if credentials can be used to restore a session
func ValidateCredentials(creds *Credentials) error {
	if creds == nil {
		return apierrors.ErrNoCredentials
	}
	s := creds.Snapshot()
	if s.RefreshToken == "" {
		return fmt.Errorf("%w: missing refresh token", apierrors.ErrNoCredentials)
	}
	if s.UID == "" {
		return fmt.Errorf("%w: missing user id", apierrors.ErrNoCredentials)
	}
	return nil
}

// GetCredentialsPath returns the path to the credentials file
func GetCredentialsPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "credentials.json"), nil
}

// LoadCredentials loads saved credentials. Returns ErrNoCredentials when none are saved.
func LoadCredentials() (*Credentials, error) {
	path, err := GetCredentialsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var snap CredentialsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid credentials file: %w", err)
	}

	creds := NewCredentials(snap)
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// SaveCredentials saves credentials to the credentials file
func SaveCredentials(creds *Credentials) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(creds.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(filepath.Join(configDir, "credentials.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}

// DeleteCredentials removes saved credentials. Missing files are not an error.
func DeleteCredentials() error {
	path, err := GetCredentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	return nil
}
