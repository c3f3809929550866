package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/friendlychat/internal/api"
	"github.com/diogo/friendlychat/internal/auth"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/feed"
	"github.com/diogo/friendlychat/internal/models"
)

type fakeIdentity struct {
	states   chan auth.State
	mu       sync.Mutex
	signOuts int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{states: make(chan auth.State, 8)}
}

func (f *fakeIdentity) Listen() (<-chan auth.State, func()) {
	return f.states, func() {}
}

func (f *fakeIdentity) SignOut() error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	f.states <- auth.State{}
	return nil
}

func (f *fakeIdentity) signIn(uid, name string) {
	f.states <- auth.State{User: &auth.User{UID: uid, DisplayName: name, Provider: models.ProviderPassword}}
}

type fakePublisher struct {
	mu      sync.Mutex
	err     error
	authors []string
	texts   []string
}

func (p *fakePublisher) PublishText(ctx context.Context, author, text string) (models.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authors = append(p.authors, author)
	p.texts = append(p.texts, text)
	if p.err != nil {
		return models.Message{}, p.err
	}
	return models.Message{Text: text, Name: author}, nil
}

func (p *fakePublisher) calls() ([]string, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.authors...), append([]string(nil), p.texts...)
}

type fakeUploader struct {
	release chan struct{}
	err     error
}

func (u *fakeUploader) Upload(ctx context.Context, author, localPath string) (models.Message, error) {
	if u.release != nil {
		select {
		case <-u.release:
		case <-ctx.Done():
			return models.Message{}, ctx.Err()
		}
	}
	if u.err != nil {
		return models.Message{}, u.err
	}
	return models.Message{Name: author, PhotoURL: "https://cdn.test/" + api.LastPathSegment(localPath)}, nil
}

type harness struct {
	ctrl      *Controller
	identity  *fakeIdentity
	source    *api.MockClient
	publisher *fakePublisher
	uploader  *fakeUploader
	cancel    context.CancelFunc
	stopped   chan error
}

func start(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		identity:  newFakeIdentity(),
		source:    &api.MockClient{},
		publisher: &fakePublisher{},
		uploader:  &fakeUploader{},
		stopped:   make(chan error, 1),
	}
	messages := feed.New(h.source, "messages", zerolog.Nop())
	h.ctrl = NewController(h.identity, messages, h.publisher, h.uploader, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.stopped <- h.ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.stopped
	})
	return h
}

func (h *harness) next(t *testing.T) Update {
	t.Helper()
	select {
	case u, ok := <-h.ctrl.Updates():
		require.True(t, ok, "updates closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func (h *harness) expect(t *testing.T, kinds ...UpdateKind) []Update {
	t.Helper()
	got := make([]Update, 0, len(kinds))
	for _, want := range kinds {
		u := h.next(t)
		require.Equal(t, want, u.Kind, "got %v (err %v)", u.Kind, u.Err)
		got = append(got, u)
	}
	return got
}

// subscription waits for the i-th feed subscription to be opened
func (h *harness) subscription(t *testing.T, i int) chan api.ChildEvent {
	t.Helper()
	require.Eventually(t, func() bool { return h.source.Subscription(i) != nil }, 2*time.Second, time.Millisecond)
	return h.source.Subscription(i)
}

func added(key, text string) api.ChildEvent {
	return api.ChildEvent{
		Kind: api.ChildAdded,
		Key:  key,
		Data: []byte(fmt.Sprintf(`{"text":%q,"name":"ana"}`, text)),
	}
}

func TestController_StartsSignedOut(t *testing.T) {
	h := start(t)
	h.identity.states <- auth.State{}

	u := h.expect(t, SignedOut)[0]
	assert.Equal(t, feed.Detached, u.FeedState)
	assert.Nil(t, h.ctrl.Session())
}

func TestController_SignInAttachesFeed(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "Ana")

	u := h.expect(t, SignedIn)[0]
	require.NotNil(t, u.Session)
	assert.Equal(t, "u1", u.Session.UID)
	assert.Equal(t, "Ana", u.Session.Author())
	assert.NotEqual(t, [16]byte{}, [16]byte(u.Session.ID))

	sub := h.subscription(t, 0)
	const n = 10
	for i := 0; i < n; i++ {
		sub <- added(fmt.Sprintf("k%02d", i), fmt.Sprintf("msg %d", i))
	}
	for i, u := range h.expect(t, repeat(MessageAdded, n)...) {
		assert.Equal(t, fmt.Sprintf("k%02d", i), u.Message.Key)
		assert.Equal(t, i+1, u.FeedLen)
		assert.Equal(t, feed.Attached, u.FeedState)
	}
}

func repeat(kind UpdateKind, n int) []UpdateKind {
	kinds := make([]UpdateKind, n)
	for i := range kinds {
		kinds[i] = kind
	}
	return kinds
}

func TestController_SignOutClearsFeed(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)
	sub := h.subscription(t, 0)
	sub <- added("a", "one")
	sub <- added("b", "two")
	h.expect(t, MessageAdded, MessageAdded)

	require.NoError(t, h.ctrl.SignOut())
	updates := h.expect(t, FeedCleared, SignedOut)
	for _, u := range updates {
		assert.Equal(t, feed.Detached, u.FeedState)
		assert.Zero(t, u.FeedLen)
	}
	assert.Nil(t, h.ctrl.Session())
	assert.Equal(t, 1, h.identity.signOuts)

	// Events from the old subscription never reach the view.
	sub <- added("c", "late")
	select {
	case u := <-h.ctrl.Updates():
		t.Fatalf("unexpected update %v", u.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestController_ReattachReplaysFullList(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)
	first := h.subscription(t, 0)
	first <- added("a", "one")
	first <- added("b", "two")
	h.expect(t, MessageAdded, MessageAdded)

	require.NoError(t, h.ctrl.SignOut())
	h.expect(t, FeedCleared, SignedOut)

	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)
	second := h.subscription(t, 1)
	second <- added("a", "one")
	second <- added("b", "two")
	updates := h.expect(t, MessageAdded, MessageAdded)
	assert.Equal(t, "a", updates[0].Message.Key)
	assert.Equal(t, 2, updates[1].FeedLen)
}

func TestController_SwitchingUsersStartsNewSession(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "Ana")
	first := h.expect(t, SignedIn)[0].Session

	h.identity.signIn("u2", "Bea")
	updates := h.expect(t, FeedCleared, SignedOut, SignedIn)
	assert.NotEqual(t, first.ID, updates[2].Session.ID)
	assert.Equal(t, "Bea", h.ctrl.Session().DisplayName)
}

func TestController_DisplayNameChangeKeepsSession(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "Ana")
	first := h.expect(t, SignedIn)[0].Session

	h.identity.signIn("u1", "Ana Maria")
	second := h.expect(t, SignedIn)[0].Session
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ana Maria", second.DisplayName)
	assert.Equal(t, "Ana", first.DisplayName)
}

func TestController_SendText(t *testing.T) {
	h := start(t)

	assert.ErrorIs(t, h.ctrl.SendText("hello"), apierrors.ErrNotSignedIn)
	assert.ErrorIs(t, h.ctrl.SendText("   "), apierrors.ErrEmptyMessage)

	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)

	require.NoError(t, h.ctrl.SendText("hello there"))
	assert.Eventually(t, func() bool {
		authors, _ := h.publisher.calls()
		return len(authors) == 1
	}, 2*time.Second, time.Millisecond)

	authors, texts := h.publisher.calls()
	assert.Equal(t, []string{"Ana"}, authors)
	assert.Equal(t, []string{"hello there"}, texts)
}

func TestController_AnonymousAuthor(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "")
	h.expect(t, SignedIn)

	require.NoError(t, h.ctrl.SendText("hi"))
	assert.Eventually(t, func() bool {
		authors, _ := h.publisher.calls()
		return len(authors) == 1 && authors[0] == models.Anonymous
	}, 2*time.Second, time.Millisecond)
}

func TestController_PublishFailureSurfaced(t *testing.T) {
	h := start(t)
	h.publisher.err = apierrors.NewAPIError(401, "db", "Permission denied")
	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)

	require.NoError(t, h.ctrl.SendText("hi"))
	u := h.expect(t, PublishFailed)[0]
	assert.True(t, apierrors.IsAuthError(u.Err))
}

func TestController_UploadLifecycle(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)

	require.NoError(t, h.ctrl.SendPhoto("/tmp/pics/cat.jpg"))
	updates := h.expect(t, UploadStarted, UploadFinished)
	assert.Equal(t, "cat.jpg", updates[0].Name)
	assert.Equal(t, "https://cdn.test/cat.jpg", updates[1].Message.PhotoURL)
	assert.Equal(t, "Ana", updates[1].Message.Name)
}

func TestController_UploadFailureSurfaced(t *testing.T) {
	h := start(t)
	h.uploader.err = apierrors.NewUploadError(apierrors.StageStore, "chat_photos/cat.jpg", errors.New("quota"))
	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)

	require.NoError(t, h.ctrl.SendPhoto("cat.jpg"))
	u := h.expect(t, UploadStarted, UploadFailed)[1]
	var upErr *apierrors.UploadError
	require.ErrorAs(t, u.Err, &upErr)
	assert.Equal(t, apierrors.StageStore, upErr.Stage)
}

func TestController_UploadSurvivesSignOut(t *testing.T) {
	h := start(t)
	h.uploader.release = make(chan struct{})
	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)

	require.NoError(t, h.ctrl.SendPhoto("cat.jpg"))
	h.expect(t, UploadStarted)
	require.NoError(t, h.ctrl.SignOut())
	h.expect(t, FeedCleared, SignedOut)

	close(h.uploader.release)
	u := h.expect(t, UploadFinished)[0]
	assert.Equal(t, "Ana", u.Message.Name)
}

func TestController_PhotoQueuedBeforeSignOutPairsUpdates(t *testing.T) {
	source := &api.MockClient{}
	ctrl := NewController(newFakeIdentity(), feed.New(source, "messages", zerolog.Nop()),
		&fakePublisher{}, &fakeUploader{}, zerolog.Nop())

	ctx := context.Background()
	ctrl.handleRequest(ctx, ctx, request{kind: sendPhoto, arg: "/tmp/pics/cat.jpg"})

	started := <-ctrl.updates
	failed := <-ctrl.updates
	assert.Equal(t, UploadStarted, started.Kind)
	assert.Equal(t, "cat.jpg", started.Name)
	assert.Equal(t, UploadFailed, failed.Kind)
	assert.ErrorIs(t, failed.Err, apierrors.ErrNotSignedIn)
}

func TestController_SendPhotoValidation(t *testing.T) {
	h := start(t)
	assert.ErrorIs(t, h.ctrl.SendPhoto(" "), apierrors.ErrEmptyMessage)
	assert.ErrorIs(t, h.ctrl.SendPhoto("cat.jpg"), apierrors.ErrNotSignedIn)
}

func TestController_FeedCancelSurfaced(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)
	sub := h.subscription(t, 0)

	sub <- added("a", "one")
	sub <- api.ChildEvent{Kind: api.Cancelled, Err: apierrors.NewSubscriptionError("messages", "permission denied", apierrors.ErrStreamCancelled)}
	updates := h.expect(t, MessageAdded, FeedError)
	assert.ErrorIs(t, updates[1].Err, apierrors.ErrStreamCancelled)
	assert.Equal(t, feed.Detached, updates[1].FeedState)
	assert.Equal(t, 1, updates[1].FeedLen)

	require.NoError(t, h.ctrl.SignOut())
	for _, u := range h.expect(t, FeedCleared, SignedOut) {
		assert.Zero(t, u.FeedLen)
	}
}

func TestController_MalformedRecordSkipped(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)
	sub := h.subscription(t, 0)

	sub <- api.ChildEvent{Kind: api.ChildAdded, Key: "bad", Data: []byte(`[1,2]`)}
	sub <- added("good", "hello")
	u := h.expect(t, MessageAdded)[0]
	assert.Equal(t, "good", u.Message.Key)
}

func TestController_AttachErrorSurfaced(t *testing.T) {
	h := start(t)
	h.source.SubscribeErr = apierrors.NewSubscriptionError("messages", "could not open stream", apierrors.ErrNotSignedIn)
	h.identity.signIn("u1", "Ana")

	u := h.expect(t, SignedIn, FeedError)[1]
	assert.ErrorIs(t, u.Err, apierrors.ErrNotSignedIn)
	assert.Equal(t, feed.Detached, u.FeedState)
}

func TestController_Teardown(t *testing.T) {
	h := start(t)
	h.identity.signIn("u1", "Ana")
	h.expect(t, SignedIn)

	h.cancel()
	require.NoError(t, <-h.stopped)
	h.stopped <- nil // for Cleanup

	_, open := <-h.ctrl.Updates()
	assert.False(t, open)
	assert.Nil(t, h.ctrl.Session())
	assert.ErrorIs(t, h.ctrl.SignOut(), ErrStopped)
}

func TestController_RunTwice(t *testing.T) {
	h := start(t)
	h.identity.states <- auth.State{}
	h.expect(t, SignedOut)
	assert.Error(t, h.ctrl.Run(context.Background()))
}

func TestUpdateKind_String(t *testing.T) {
	assert.Equal(t, "message_added", MessageAdded.String())
	assert.Equal(t, "UpdateKind(42)", UpdateKind(42).String())
}
