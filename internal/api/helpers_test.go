package api

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/stretchr/testify/require"

	"github.com/diogo/friendlychat/internal/config"
)

// fakeDoer records requests and answers them with handler
type fakeDoer struct {
	mu       sync.Mutex
	handler  func(req *http.Request) (*http.Response, error)
	requests []*http.Request
	bodies   []string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	return f.handler(req)
}

func (f *fakeDoer) request(i int) (*http.Request, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i], f.bodies[i]
}

func (f *fakeDoer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testConfig() config.Config {
	return config.Config{
		APIKey:        "test-key",
		DatabaseURL:   "https://demo.firebaseio.com",
		StorageBucket: "demo.appspot.com",
	}
}

func signedInCreds() *config.Credentials {
	return config.NewCredentials(config.CredentialsSnapshot{
		IDToken:      "id-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		UID:          "uid-1",
		DisplayName:  "Ana",
		Provider:     "password",
	})
}

func newTestClient(t *testing.T, doer HTTPDoer, opts ...ClientOption) *Client {
	t.Helper()
	base := []ClientOption{
		WithHTTPClient(doer),
		WithStreamClient(doer),
		WithAutoRefresh(false),
		WithReconnectBackoff(time.Millisecond, 20*time.Millisecond),
	}
	client, err := NewClient(testConfig(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}
