package api

import (
	"sync/atomic"
	"testing"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTokenRefresher_StartStop(t *testing.T) {
	client := newTestClient(t, &fakeDoer{}, WithCredentials(signedInCreds()))
	r := NewTokenRefresher(client, time.Hour, zerolog.Nop())

	assert.False(t, r.IsRunning())
	r.Start()
	assert.True(t, r.IsRunning())
	r.Start() // idempotent
	r.Stop()
	assert.False(t, r.IsRunning())
	r.Stop() // idempotent
}

func TestTokenRefresher_RefreshesOnTick(t *testing.T) {
	var calls atomic.Int32
	doer := &fakeDoer{handler: func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(200, `{"id_token":"id-new","refresh_token":"r","expires_in":"3600"}`), nil
	}}
	client := newTestClient(t, doer, WithCredentials(signedInCreds()))

	r := NewTokenRefresher(client, 10*time.Millisecond, zerolog.Nop())
	r.Start()
	defer r.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "id-new", client.Credentials().GetIDToken())
}

func TestTokenRefresher_StopsWhenRefreshTokenIsDead(t *testing.T) {
	var calls atomic.Int32
	var reported atomic.Int32
	doer := &fakeDoer{handler: func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(400, `{"error":{"code":400,"message":"TOKEN_EXPIRED"}}`), nil
	}}
	client := newTestClient(t, doer, WithCredentials(signedInCreds()))

	r := NewTokenRefresher(client, 5*time.Millisecond, zerolog.Nop())
	r.OnError = func(error) { reported.Add(1) }
	r.Start()
	defer r.Stop()

	assert.Eventually(t, func() bool { return reported.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
