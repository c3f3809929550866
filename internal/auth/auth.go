// Package auth tracks who is signed in and tells interested parties when
// that changes.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/diogo/friendlychat/internal/api"
	"github.com/diogo/friendlychat/internal/config"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/models"
)

// User is the signed-in account
type User struct {
	UID         string
	DisplayName string
	Email       string
	Provider    string
}

// State is an authentication state notification. User is nil when signed out.
type State struct {
	User *User
}

// SignedIn reports whether the state carries a user
func (s State) SignedIn() bool {
	return s.User != nil
}

// Store persists credentials between runs
type Store interface {
	Load() (*config.Credentials, error)
	Save(creds *config.Credentials) error
	Delete() error
}

type fileStore struct{}

// FileStore keeps credentials in the config directory
func FileStore() Store {
	return fileStore{}
}

func (fileStore) Load() (*config.Credentials, error)   { return config.LoadCredentials() }
func (fileStore) Save(creds *config.Credentials) error { return config.SaveCredentials(creds) }
func (fileStore) Delete() error                        { return config.DeleteCredentials() }

// Manager signs users in and out and notifies listeners of state changes.
type Manager struct {
	client api.ClientInterface
	store  Store
	logger zerolog.Logger

	mu        sync.Mutex
	user      *User
	listeners map[int]chan State
	nextID    int
}

// NewManager creates a signed-out manager
func NewManager(client api.ClientInterface, store Store, logger zerolog.Logger) *Manager {
	return &Manager{
		client:    client,
		store:     store,
		logger:    logger,
		listeners: make(map[int]chan State),
	}
}

// Listen registers a listener. The current state is delivered right away.
// A slow listener only ever sees the latest state. The returned function
// unregisters the listener and closes its channel.
func (m *Manager) Listen() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan State, 1)
	ch <- m.stateLocked()
	m.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if ch, ok := m.listeners[id]; ok {
				delete(m.listeners, id)
				close(ch)
			}
		})
	}
}

// Current returns the current state
func (m *Manager) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	if m.user == nil {
		return State{}
	}
	u := *m.user
	return State{User: &u}
}

func (m *Manager) setUser(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = u
	st := m.stateLocked()
	for _, ch := range m.listeners {
		// Replace a state the listener has not picked up yet.
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

// Providers lists the sign-in methods offered to users
func (m *Manager) Providers() []models.Provider {
	return models.SupportedProviders()
}

// SignInWithPassword signs in with an email/password account
func (m *Manager) SignInWithPassword(ctx context.Context, email, password string) (*User, error) {
	if err := requireFields(email, password); err != nil {
		return nil, err
	}
	creds, err := m.client.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	return m.established(creds), nil
}

// SignUp creates an email/password account and signs in with it
func (m *Manager) SignUp(ctx context.Context, email, password, displayName string) (*User, error) {
	if err := requireFields(email, password); err != nil {
		return nil, err
	}
	creds, err := m.client.SignUp(ctx, strings.TrimSpace(email), password, strings.TrimSpace(displayName))
	if err != nil {
		return nil, err
	}
	return m.established(creds), nil
}

// SignInWithGoogle signs in with an ID token issued by Google
func (m *Manager) SignInWithGoogle(ctx context.Context, googleIDToken string) (*User, error) {
	googleIDToken = strings.TrimSpace(googleIDToken)
	if googleIDToken == "" {
		return nil, apierrors.NewValidationError("google id token", apierrors.ErrNoCredentials)
	}
	creds, err := m.client.SignInWithGoogle(ctx, googleIDToken)
	if err != nil {
		return nil, err
	}
	return m.established(creds), nil
}

func requireFields(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return apierrors.NewValidationError("email", apierrors.ErrNoCredentials)
	}
	if password == "" {
		return apierrors.NewValidationError("password", apierrors.ErrNoCredentials)
	}
	return nil
}

// established persists creds and publishes the signed-in state
func (m *Manager) established(creds *config.Credentials) *User {
	if err := m.store.Save(creds); err != nil {
		m.logger.Warn().Err(err).Msg("could not save credentials")
	}
	u := userFrom(creds)
	m.logger.Info().Str("uid", u.UID).Str("provider", u.Provider).Msg("signed in")
	m.setUser(u)
	return u
}

func userFrom(creds *config.Credentials) *User {
	s := creds.Snapshot()
	return &User{
		UID:         s.UID,
		DisplayName: s.DisplayName,
		Email:       s.Email,
		Provider:    s.Provider,
	}
}

// Restore signs in silently with saved credentials. It returns a nil user and
// no error when nothing is saved. Saved credentials the platform no longer
// accepts are deleted.
func (m *Manager) Restore(ctx context.Context) (*User, error) {
	creds, err := m.store.Load()
	if errors.Is(err, apierrors.ErrNoCredentials) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.client.SetCredentials(creds)
	if err := m.client.RefreshToken(ctx); err != nil {
		var authErr *apierrors.AuthError
		if errors.As(err, &authErr) && authErr.RequiresReauth() {
			m.client.SetCredentials(nil)
			if delErr := m.store.Delete(); delErr != nil {
				m.logger.Warn().Err(delErr).Msg("could not delete stale credentials")
			}
			return nil, err
		}
		// Offline: keep the session, the token is refreshed on next use.
		m.logger.Warn().Err(err).Msg("token refresh failed during restore")
	}

	if creds.Snapshot().DisplayName == "" {
		if profile, err := m.client.LookupProfile(ctx); err == nil && profile != nil && profile.DisplayName != "" {
			creds.SetDisplayName(profile.DisplayName)
		}
	}
	return m.established(creds), nil
}

// SetDisplayName changes the signed-in user's display name
func (m *Manager) SetDisplayName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	creds := m.client.Credentials()
	if creds == nil {
		return apierrors.ErrNotSignedIn
	}
	if err := m.client.UpdateDisplayName(ctx, name); err != nil {
		return err
	}
	creds.SetDisplayName(name)
	m.established(creds)
	return nil
}

// SignOut forgets the session in memory and on disk
func (m *Manager) SignOut() error {
	m.client.SetCredentials(nil)
	err := m.store.Delete()
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not delete credentials")
	}

	m.mu.Lock()
	wasSignedIn := m.user != nil
	m.mu.Unlock()
	if wasSignedIn {
		m.logger.Info().Msg("signed out")
		m.setUser(nil)
	}
	return err
}
