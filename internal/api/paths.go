// Package api provides the REST and streaming client for the hosted chat platform.
package api

// GJSON paths for extracting values from platform responses.
const (
	// Identity toolkit responses (signInWithPassword, signUp, signInWithIdp)
	PathIDToken      = "idToken"
	PathRefreshToken = "refreshToken"
	PathExpiresIn    = "expiresIn"
	PathLocalID      = "localId"
	PathEmail        = "email"
	PathDisplayName  = "displayName"
	PathProviderID   = "providerId"

	// Secure token responses use snake_case
	PathTokenIDToken      = "id_token"
	PathTokenRefreshToken = "refresh_token"
	PathTokenExpiresIn    = "expires_in"
	PathTokenUserID       = "user_id"

	// accounts:lookup
	PathLookupUser = "users.0"

	// Errors. Identity and storage nest the message, the database returns a bare string.
	PathErrorMessage = "error.message"
	PathError        = "error"

	// Database push response
	PathPushName = "name"

	// Storage object metadata
	PathObjectName           = "name"
	PathObjectBucket         = "bucket"
	PathObjectSize           = "size"
	PathObjectContentType    = "contentType"
	PathObjectDownloadTokens = "downloadTokens"

	// Server-sent event payloads
	PathEventPath = "path"
	PathEventData = "data"
)
