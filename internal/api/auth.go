package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	"github.com/diogo/friendlychat/internal/config"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/models"
)

// defaultTokenLifetime is used when a response omits expiresIn
const defaultTokenLifetime = time.Hour

// Profile is the account information held by the identity platform
type Profile struct {
	UID         string
	Email       string
	DisplayName string
}

func (c *Client) identityURL(op string) string {
	return fmt.Sprintf("%s/%s?key=%s",
		strings.TrimRight(c.cfg.IdentityEndpoint(), "/"), op, url.QueryEscape(c.cfg.APIKey))
}

func (c *Client) postIdentity(ctx context.Context, op string, payload map[string]any) (gjson.Result, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	endpoint := c.identityURL(op)
	req, err := newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(data), jsonHeaders(nil))
	if err != nil {
		return gjson.Result{}, err
	}

	body, err := c.do(req, endpointName(endpoint))
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, apierrors.NewParseError("identity response is not JSON", op)
	}
	return gjson.ParseBytes(body), nil
}

// credentialsFromResult builds Credentials from a sign-in response and installs them.
func (c *Client) credentialsFromResult(result gjson.Result, provider string) (*config.Credentials, error) {
	idToken := result.Get(PathIDToken).String()
	uid := result.Get(PathLocalID).String()
	if idToken == "" || uid == "" {
		return nil, apierrors.NewParseError("missing idToken or localId", "sign-in")
	}

	creds := config.NewCredentials(config.CredentialsSnapshot{
		IDToken:      idToken,
		RefreshToken: result.Get(PathRefreshToken).String(),
		ExpiresAt:    time.Now().Add(parseExpiresIn(result.Get(PathExpiresIn))),
		UID:          uid,
		DisplayName:  result.Get(PathDisplayName).String(),
		Email:        result.Get(PathEmail).String(),
		Provider:     provider,
	})
	c.SetCredentials(creds)
	return creds, nil
}

// parseExpiresIn reads a lifetime in seconds, sent as a string by the platform
func parseExpiresIn(v gjson.Result) time.Duration {
	if secs := v.Int(); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultTokenLifetime
}

// SignInWithPassword signs in with email and password
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*config.Credentials, error) {
	result, err := c.postIdentity(ctx, models.OpSignInWithPassword, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("provider", models.ProviderPassword).Msg("signed in")
	return c.credentialsFromResult(result, models.ProviderPassword)
}

// SignUp creates an email/password account and sets its display name
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*config.Credentials, error) {
	result, err := c.postIdentity(ctx, models.OpSignUp, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}

	creds, err := c.credentialsFromResult(result, models.ProviderPassword)
	if err != nil {
		return nil, err
	}

	if displayName != "" {
		if err := c.UpdateDisplayName(ctx, displayName); err != nil {
			return creds, fmt.Errorf("account created but display name not set: %w", err)
		}
	}
	c.logger.Info().Str("provider", models.ProviderPassword).Msg("account created")
	return creds, nil
}

// SignInWithGoogle exchanges a Google ID token for a platform session
func (c *Client) SignInWithGoogle(ctx context.Context, googleIDToken string) (*config.Credentials, error) {
	if googleIDToken == "" {
		return nil, apierrors.NewAuthError("missing Google ID token")
	}

	postBody := url.Values{}
	postBody.Set("id_token", googleIDToken)
	postBody.Set("providerId", models.ProviderGoogle)

	result, err := c.postIdentity(ctx, models.OpSignInWithIdp, map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          "http://localhost",
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("provider", models.ProviderGoogle).Msg("signed in")
	return c.credentialsFromResult(result, models.ProviderGoogle)
}

// UpdateDisplayName sets the display name on the signed-in account
func (c *Client) UpdateDisplayName(ctx context.Context, displayName string) error {
	token, err := c.IDToken(ctx)
	if err != nil {
		return err
	}

	if _, err := c.postIdentity(ctx, models.OpUpdateProfile, map[string]any{
		"idToken":           token,
		"displayName":       displayName,
		"returnSecureToken": false,
	}); err != nil {
		return err
	}

	c.Credentials().SetDisplayName(displayName)
	return nil
}

// LookupProfile fetches the account profile for the current session
func (c *Client) LookupProfile(ctx context.Context) (*Profile, error) {
	token, err := c.IDToken(ctx)
	if err != nil {
		return nil, err
	}

	result, err := c.postIdentity(ctx, models.OpLookup, map[string]any{"idToken": token})
	if err != nil {
		return nil, err
	}

	user := result.Get(PathLookupUser)
	if !user.Exists() {
		return nil, apierrors.NewParseError("no user in lookup response", PathLookupUser)
	}
	return &Profile{
		UID:         user.Get(PathLocalID).String(),
		Email:       user.Get(PathEmail).String(),
		DisplayName: user.Get(PathDisplayName).String(),
	}, nil
}

// RefreshToken exchanges the refresh token for a new ID token.
// Concurrent callers share a single refresh.
func (c *Client) RefreshToken(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	creds := c.Credentials()
	if creds == nil {
		return apierrors.ErrNotSignedIn
	}
	// Another caller refreshed while we waited for the lock.
	if !creds.Expired() && ctx.Value(forceRefreshKey{}) == nil {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.GetRefreshToken())

	endpoint := fmt.Sprintf("%s?key=%s", c.cfg.TokenEndpoint(), url.QueryEscape(c.cfg.APIKey))
	req, err := newRequest(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json",
	})
	if err != nil {
		return err
	}

	body, err := c.do(req, endpointName(endpoint))
	if err != nil {
		c.logger.Warn().Err(err).Msg("token refresh failed")
		return err
	}

	result := gjson.ParseBytes(body)
	idToken := result.Get(PathTokenIDToken).String()
	if idToken == "" {
		return apierrors.NewParseError("missing id_token", PathTokenIDToken)
	}
	creds.UpdateTokens(idToken, result.Get(PathTokenRefreshToken).String(),
		parseExpiresIn(result.Get(PathTokenExpiresIn)))
	c.logger.Debug().Msg("token refreshed")
	return nil
}

type forceRefreshKey struct{}

// ForceRefresh returns a context that makes RefreshToken refresh even an unexpired token.
func ForceRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, forceRefreshKey{}, true)
}
