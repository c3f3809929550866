package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apierrors "github.com/diogo/friendlychat/internal/errors"
)

// refreshTimeout bounds a single background refresh
const refreshTimeout = 30 * time.Second

// TokenRefresher keeps the session's ID token fresh in the background
type TokenRefresher struct {
	client   *Client
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
	running  bool
	mu       sync.Mutex

	// OnError is called from the refresher goroutine when a refresh fails.
	OnError func(error)
}

// NewTokenRefresher creates a new token refresher
func NewTokenRefresher(client *Client, interval time.Duration, logger zerolog.Logger) *TokenRefresher {
	return &TokenRefresher{
		client:   client,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins background token refresh
func (r *TokenRefresher) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := r.refresh(); err != nil {
					r.logger.Warn().Err(err).Msg("background token refresh failed")
					if r.OnError != nil {
						r.OnError(err)
					}
					var authErr *apierrors.AuthError
					if errors.As(err, &authErr) && authErr.RequiresReauth() {
						// The refresh token is dead; retrying cannot help.
						return
					}
				}
			case <-r.stopCh:
				return
			}
		}
	}()
}

func (r *TokenRefresher) refresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return r.client.RefreshToken(ForceRefresh(ctx))
}

// Stop halts background token refresh
func (r *TokenRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		close(r.stopCh)
		r.running = false
	}
}

// IsRunning reports whether the refresher goroutine has been started and not stopped
func (r *TokenRefresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
