// Package session owns everything that exists only while a user is signed
// in, and serializes all chat state changes onto one goroutine.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/diogo/friendlychat/internal/auth"
	"github.com/diogo/friendlychat/internal/models"
)

// Context describes one signed-in session. It is created on sign-in and
// discarded on sign-out; it is never modified in place.
type Context struct {
	ID          uuid.UUID
	UID         string
	DisplayName string
	Email       string
	Provider    string
	StartedAt   time.Time
}

// NewContext starts a session for u
func NewContext(u auth.User) *Context {
	return &Context{
		ID:          uuid.New(),
		UID:         u.UID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Provider:    u.Provider,
		StartedAt:   time.Now(),
	}
}

// Author is the name outbound messages are published under
func (c *Context) Author() string {
	if c == nil {
		return models.Anonymous
	}
	return models.AuthorName(c.DisplayName)
}

// withDisplayName returns a copy of c carrying a new display name
func (c *Context) withDisplayName(name string) *Context {
	cp := *c
	cp.DisplayName = name
	return &cp
}
