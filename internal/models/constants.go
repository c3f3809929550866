// Package models contains data types and constants for the friendlychat client.
package models

// Endpoints for the hosted platform REST APIs
const (
	EndpointIdentityToolkit = "https://identitytoolkit.googleapis.com/v1"
	EndpointSecureToken     = "https://securetoken.googleapis.com/v1/token"
	EndpointStorage         = "https://firebasestorage.googleapis.com/v0"
)

// Identity platform operations, appended to EndpointIdentityToolkit
const (
	OpSignInWithPassword = "accounts:signInWithPassword"
	OpSignUp             = "accounts:signUp"
	OpSignInWithIdp      = "accounts:signInWithIdp"
	OpUpdateProfile      = "accounts:update"
	OpLookup             = "accounts:lookup"
)

// Sign-in providers
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// Remote collection and blob store names
const (
	DefaultMessagesPath = "messages"
	DefaultPhotosPath   = "chat_photos"
)

const (
	// Anonymous is the author name used when no session exists.
	Anonymous = "anonymous"

	// MaxMessageLength is the maximum number of characters in a text message.
	MaxMessageLength = 1000

	// MaxPhotoSize is the largest file accepted for upload.
	MaxPhotoSize = 20 * 1024 * 1024 // 20MB
)

// Provider describes a sign-in method offered to the user.
type Provider struct {
	ID          string
	DisplayName string
}

// SupportedProviders returns the sign-in providers in display order.
func SupportedProviders() []Provider {
	return []Provider{
		{ID: ProviderPassword, DisplayName: "Email"},
		{ID: ProviderGoogle, DisplayName: "Google"},
	}
}

// ProviderName returns the display name for a provider ID.
func ProviderName(id string) string {
	for _, p := range SupportedProviders() {
		if p.ID == id {
			return p.DisplayName
		}
	}
	return id
}

// DefaultHeaders returns headers sent with every JSON request.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   "friendlychat-cli/1.0",
	}
}

// StreamHeaders returns headers for a server-sent events subscription.
func StreamHeaders() map[string]string {
	return map[string]string{
		"Accept":        "text/event-stream",
		"Cache-Control": "no-cache",
		"User-Agent":    "friendlychat-cli/1.0",
	}
}
