package api

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/diogo/friendlychat/internal/config"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/models"
)

// HTTPDoer is the part of tls_client.HttpClient the client uses.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientInterface is implemented by Client and MockClient
type ClientInterface interface {
	Init() error
	Close()
	IsClosed() bool
	Config() config.Config
	Credentials() *config.Credentials
	SetCredentials(creds *config.Credentials)
	IDToken(ctx context.Context) (string, error)

	SignInWithPassword(ctx context.Context, email, password string) (*config.Credentials, error)
	SignUp(ctx context.Context, email, password, displayName string) (*config.Credentials, error)
	SignInWithGoogle(ctx context.Context, googleIDToken string) (*config.Credentials, error)
	RefreshToken(ctx context.Context) error
	LookupProfile(ctx context.Context) (*Profile, error)
	UpdateDisplayName(ctx context.Context, displayName string) error

	Push(ctx context.Context, path string, value any) (string, error)
	Subscribe(ctx context.Context, path string) (<-chan ChildEvent, error)

	UploadObject(ctx context.Context, objectName string, data []byte, contentType string) (*ObjectMetadata, error)
	DownloadURL(ctx context.Context, objectName string) (string, error)
	DownloadPhoto(ctx context.Context, photoURL string, opts DownloadOptions) (string, error)
}

var _ ClientInterface = (*Client)(nil)

// maxErrorBody caps how much of a failed response is read for diagnostics
const maxErrorBody = 2048

// Client talks to the identity platform, the realtime database and blob storage.
type Client struct {
	httpClient      HTTPDoer
	streamClient    HTTPDoer
	cfg             config.Config
	creds           *config.Credentials
	rotator         *TokenRefresher
	autoRefresh     bool
	refreshInterval time.Duration
	backoffMin      time.Duration
	backoffMax      time.Duration
	logger          zerolog.Logger
	refreshMu       sync.Mutex
	mu              sync.RWMutex
	closed          bool
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithHTTPClient sets the transport used for request/response calls
func WithHTTPClient(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithStreamClient sets the transport used for long-lived event streams
func WithStreamClient(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		c.streamClient = doer
	}
}

// WithCredentials starts the client with an existing session
func WithCredentials(creds *config.Credentials) ClientOption {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithAutoRefresh enables background token refresh
func WithAutoRefresh(enabled bool) ClientOption {
	return func(c *Client) {
		c.autoRefresh = enabled
	}
}

// WithRefreshInterval sets the token refresh interval
func WithRefreshInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.refreshInterval = interval
	}
}

// WithReconnectBackoff sets the bounds of the stream reconnect delay
func WithReconnectBackoff(minDelay, maxDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.backoffMin = minDelay
		c.backoffMax = maxDelay
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Client for the project described by cfg
func NewClient(cfg config.Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	refresh := 50 * time.Minute
	if cfg.RefreshMinutes > 0 {
		refresh = time.Duration(cfg.RefreshMinutes) * time.Minute
	}

	client := &Client{
		cfg:             cfg,
		autoRefresh:     true,
		refreshInterval: refresh,
		backoffMin:      BackoffMinInterval,
		backoffMax:      BackoffMaxInterval,
		logger:          zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		httpClient, err := newTLSClient(60)
		if err != nil {
			return nil, err
		}
		client.httpClient = httpClient
	}
	if client.streamClient == nil {
		// No overall timeout: streams stay open until cancelled.
		streamClient, err := newTLSClient(0)
		if err != nil {
			return nil, err
		}
		client.streamClient = streamClient
	}

	return client, nil
}

func newTLSClient(timeoutSeconds int) (tls_client.HttpClient, error) {
	// A zero timeout disables the client-side deadline.
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(timeoutSeconds),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithNotFollowRedirects(),
	}

	httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return httpClient, nil
}

// Init starts background token refresh if the client holds a session
func (c *Client) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	c.startRefresherLocked()
	return nil
}

func (c *Client) startRefresherLocked() {
	if !c.autoRefresh || c.creds == nil || c.rotator != nil {
		return
	}
	c.rotator = NewTokenRefresher(c, c.refreshInterval, c.logger)
	c.rotator.Start()
}

func (c *Client) stopRefresherLocked() {
	if c.rotator != nil {
		c.rotator.Stop()
		c.rotator = nil
	}
}

// Close shuts down the client and stops background tasks
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.stopRefresherLocked()
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Config returns the project configuration
func (c *Client) Config() config.Config {
	return c.cfg
}

// Credentials returns the current session credentials, or nil when signed out
func (c *Client) Credentials() *config.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// SetCredentials installs a new session. Passing nil signs the client out.
func (c *Client) SetCredentials(creds *config.Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopRefresherLocked()
	c.creds = creds
	if !c.closed {
		c.startRefresherLocked()
	}
}

// IDToken returns a valid ID token, refreshing it first if it has expired.
func (c *Client) IDToken(ctx context.Context) (string, error) {
	creds := c.Credentials()
	if creds == nil {
		return "", apierrors.ErrNotSignedIn
	}
	if creds.Expired() {
		if err := c.RefreshToken(ctx); err != nil {
			return "", err
		}
	}
	return creds.GetIDToken(), nil
}

// newRequest builds a request with the default headers applied
func newRequest(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// do executes a request and returns the response body of a 2xx response.
// Anything else becomes an AuthError, APIError or NetworkError.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apierrors.NewNetworkError(endpoint, err)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, responseError(resp.StatusCode, endpoint, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.NewNetworkError(endpoint, fmt.Errorf("failed to read response: %w", err))
	}
	return body, nil
}

// responseError maps an error body from any of the three services to a typed error.
func responseError(status int, endpoint string, body []byte) error {
	msg := ""
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if m := parsed.Get(PathErrorMessage); m.Exists() {
			msg = m.String()
		} else if m := parsed.Get(PathError); m.Type == gjson.String {
			msg = m.String()
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
	}

	// Identity platform failures carry an upper-case code such as INVALID_PASSWORD.
	if strings.Contains(endpoint, "identitytoolkit") || strings.Contains(endpoint, "securetoken") ||
		isPlatformCode(msg) {
		return apierrors.NewAuthErrorWithCode(msg)
	}
	return apierrors.NewAPIError(status, endpoint, msg)
}

func isPlatformCode(msg string) bool {
	code := msg
	if idx := strings.Index(code, " : "); idx >= 0 {
		code = code[:idx]
	}
	if code == "" || strings.ToUpper(code) != code {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && r != '_' {
			return false
		}
	}
	return true
}

// endpointName strips query parameters (which may carry tokens) for logs and errors
func endpointName(url string) string {
	if idx := strings.IndexByte(url, '?'); idx >= 0 {
		return url[:idx]
	}
	return url
}

// jsonHeaders returns DefaultHeaders plus extra
func jsonHeaders(extra map[string]string) map[string]string {
	headers := models.DefaultHeaders()
	for k, v := range extra {
		headers[k] = v
	}
	return headers
}
