package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/friendlychat/internal/errors"
)

// databaseURL returns the REST URL of a database location, authenticated with token.
func (c *Client) databaseURL(path, token string) string {
	u := fmt.Sprintf("%s/%s.json", strings.TrimRight(c.cfg.DatabaseURL, "/"), strings.Trim(path, "/"))
	if token != "" {
		u += "?auth=" + url.QueryEscape(token)
	}
	return u
}

// Push appends value to the ordered collection at path and returns the generated key.
// Keys sort in creation order.
func (c *Client) Push(ctx context.Context, path string, value any) (string, error) {
	token, err := c.IDToken(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}

	endpoint := c.databaseURL(path, token)
	req, err := newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(data), jsonHeaders(nil))
	if err != nil {
		return "", err
	}

	body, err := c.do(req, endpointName(endpoint))
	if err != nil {
		return "", err
	}

	key := gjson.GetBytes(body, PathPushName).String()
	if key == "" {
		return "", apierrors.NewParseError("push response has no key", PathPushName)
	}
	c.logger.Debug().Str("path", path).Str("key", key).Msg("pushed record")
	return key, nil
}
