// Package errors provides custom error types for the friendlychat client.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrNoCredentials   = errors.New("no saved credentials")
	ErrTokenExpired    = errors.New("session token has expired")
	ErrNotSignedIn     = errors.New("not signed in")
	ErrSignInCancelled = errors.New("sign in cancelled")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrMessageTooLong  = errors.New("message is too long")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrStreamCancelled = errors.New("subscription cancelled by server")
)

// Identity platform error codes that can only be fixed by signing in again.
var reauthCodes = map[string]bool{
	"TOKEN_EXPIRED":                  true,
	"INVALID_REFRESH_TOKEN":          true,
	"INVALID_ID_TOKEN":               true,
	"USER_DISABLED":                  true,
	"USER_NOT_FOUND":                 true,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": true,
}

// AuthError represents an authentication failure reported by the identity platform.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("authentication failed [%s]: %s", e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("authentication failed: %s", describeAuthCode(e.Code))
	case e.Message != "":
		return fmt.Sprintf("authentication failed: %s", e.Message)
	}
	return "authentication failed: please sign in again"
}

// Is allows comparison with sentinel errors
func (e *AuthError) Is(target error) bool {
	if target == ErrAuthFailed {
		return true
	}
	if target == ErrTokenExpired {
		return e.RequiresReauth()
	}
	_, ok := target.(*AuthError)
	return ok
}

// RequiresReauth reports whether the stored credentials can no longer be used.
func (e *AuthError) RequiresReauth() bool {
	return reauthCodes[e.Code]
}

// NewAuthError creates a new AuthError
func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

// NewAuthErrorWithCode creates an AuthError from a platform error code such as
// "INVALID_PASSWORD" or "EMAIL_EXISTS : ...".
func NewAuthErrorWithCode(code string) *AuthError {
	code = strings.TrimSpace(code)
	msg := ""
	if idx := strings.Index(code, " : "); idx >= 0 {
		msg = strings.TrimSpace(code[idx+3:])
		code = strings.TrimSpace(code[:idx])
	}
	return &AuthError{Code: code, Message: msg}
}

func describeAuthCode(code string) string {
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return "invalid email or password"
	case "EMAIL_EXISTS":
		return "an account with this email already exists"
	case "WEAK_PASSWORD":
		return "password is too weak"
	case "USER_DISABLED":
		return "this account has been disabled"
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "INVALID_ID_TOKEN":
		return "session expired, please sign in again"
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return "too many attempts, try again later"
	case "OPERATION_NOT_ALLOWED":
		return "this sign-in provider is disabled for the project"
	}
	return strings.ToLower(strings.ReplaceAll(code, "_", " "))
}

// APIError represents an API request failure
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// Is treats 401 and 403 responses as authentication failures.
func (e *APIError) Is(target error) bool {
	if target == ErrAuthFailed {
		return e.StatusCode == 401 || e.StatusCode == 403
	}
	_, ok := target.(*APIError)
	return ok
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// NetworkError represents a transport failure before any response was received
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error at %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(endpoint string, err error) *NetworkError {
	return &NetworkError{Endpoint: endpoint, Err: err}
}

// TimeoutError represents a request timeout
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "request timed out"
	}
	return fmt.Sprintf("request timed out: %s", e.Message)
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{Message: message}
}

// ParseError represents a response parsing error
type ParseError struct {
	Message string
	Path    string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse error at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Is allows comparison with sentinel errors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// NewParseError creates a new ParseError
func NewParseError(message, path string) *ParseError {
	return &ParseError{Message: message, Path: path}
}

// ValidationError is returned when user input is rejected before it reaches the network.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// Upload stages, in the order they run.
const (
	StageRead    = "read"
	StageStore   = "store"
	StageResolve = "resolve"
	StagePublish = "publish"
)

// UploadError reports which step of a photo upload failed.
type UploadError struct {
	Stage  string
	Object string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("upload failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("upload of %s failed at %s: %v", e.Object, e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// NewUploadError creates a new UploadError
func NewUploadError(stage, object string, err error) *UploadError {
	return &UploadError{Stage: stage, Object: object, Err: err}
}

// SubscriptionError reports a failure of the live message subscription.
type SubscriptionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SubscriptionError) Error() string {
	msg := fmt.Sprintf("subscription to %s failed", e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// NewSubscriptionError creates a new SubscriptionError
func NewSubscriptionError(path, reason string, err error) *SubscriptionError {
	return &SubscriptionError{Path: path, Reason: reason, Err: err}
}

// DownloadError represents a failed photo download
type DownloadError struct {
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *DownloadError) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("download failed [%d]: %s", e.StatusCode, e.URL)
	case e.Err != nil:
		return fmt.Sprintf("download failed: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("download failed: %s: %s", e.URL, e.Message)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// NewDownloadError creates a new DownloadError
func NewDownloadError(message, url string) *DownloadError {
	return &DownloadError{URL: url, Message: message}
}

// NewDownloadErrorWithStatus creates a DownloadError for an unexpected HTTP status
func NewDownloadErrorWithStatus(url string, statusCode int) *DownloadError {
	return &DownloadError{URL: url, StatusCode: statusCode}
}

// NewDownloadNetworkError wraps a transport failure during download
func NewDownloadNetworkError(url string, err error) *DownloadError {
	return &DownloadError{URL: url, Err: NewNetworkError(url, err)}
}

// IsAuthError reports whether err is, or wraps, an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// IsNetworkError reports whether err is, or wraps, a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsTimeoutError reports whether err is, or wraps, a TimeoutError.
func IsTimeoutError(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// GetHTTPStatus returns the HTTP status carried by err, or 0.
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var dlErr *DownloadError
	if errors.As(err, &dlErr) {
		return dlErr.StatusCode
	}
	return 0
}
