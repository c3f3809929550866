package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/diogo/friendlychat/internal/api"
	"github.com/diogo/friendlychat/internal/auth"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/feed"
	"github.com/diogo/friendlychat/internal/models"
)

// ErrStopped is returned for requests made after the controller stopped
var ErrStopped = errors.New("session controller stopped")

const (
	requestBuffer  = 16
	updateBuffer   = 256
	deliveryBuffer = 64
)

// UpdateKind identifies what an Update reports
type UpdateKind int

const (
	SignedIn UpdateKind = iota
	SignedOut
	FeedCleared
	MessageAdded
	FeedError
	PublishFailed
	UploadStarted
	UploadFinished
	UploadFailed
)

func (k UpdateKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case FeedCleared:
		return "feed_cleared"
	case MessageAdded:
		return "message_added"
	case FeedError:
		return "feed_error"
	case PublishFailed:
		return "publish_failed"
	case UploadStarted:
		return "upload_started"
	case UploadFinished:
		return "upload_finished"
	case UploadFailed:
		return "upload_failed"
	}
	return fmt.Sprintf("UpdateKind(%d)", int(k))
}

// Update is one change for the view to render. Updates arrive in the order
// the controller applied them.
type Update struct {
	Kind UpdateKind
	// Session is set for SignedIn.
	Session *Context
	// Message is set for MessageAdded and UploadFinished.
	Message models.Message
	// Name is the photo file name for upload updates.
	Name string
	Err  error

	// FeedState and FeedLen describe the feed right after the update was applied.
	FeedState feed.State
	FeedLen   int
}

// Identity is the authentication state the controller follows
type Identity interface {
	Listen() (<-chan auth.State, func())
	SignOut() error
}

// MessageFeed is the local message list and its subscription
type MessageFeed interface {
	Attach(ctx context.Context, sink chan<- feed.Delivery) (bool, error)
	Apply(d feed.Delivery) (models.Message, bool, error)
	Detach() bool
	State() feed.State
	Len() int
}

// TextPublisher publishes text messages
type TextPublisher interface {
	PublishText(ctx context.Context, author, text string) (models.Message, error)
}

// PhotoUploader uploads and publishes photos
type PhotoUploader interface {
	Upload(ctx context.Context, author, localPath string) (models.Message, error)
}

type requestKind int

const (
	sendText requestKind = iota
	sendPhoto
	signOut
)

type request struct {
	kind requestKind
	arg  string
}

// Controller runs the chat session. Auth changes, feed events, user requests
// and finished background work are all handled on the goroutine running Run.
type Controller struct {
	identity  Identity
	feed      MessageFeed
	publisher TextPublisher
	uploader  PhotoUploader
	logger    zerolog.Logger

	requests   chan request
	results    chan Update
	deliveries chan feed.Delivery
	updates    chan Update
	done       chan struct{}
	started    atomic.Bool
	current    atomic.Pointer[Context]
	tasks      sync.WaitGroup

	// Owned by the Run goroutine.
	session *Context
	known   bool
}

// NewController wires a controller. Call Run to start it.
func NewController(identity Identity, messages MessageFeed, publisher TextPublisher, uploader PhotoUploader, logger zerolog.Logger) *Controller {
	return &Controller{
		identity:   identity,
		feed:       messages,
		publisher:  publisher,
		uploader:   uploader,
		logger:     logger,
		requests:   make(chan request, requestBuffer),
		results:    make(chan Update),
		deliveries: make(chan feed.Delivery, deliveryBuffer),
		updates:    make(chan Update, updateBuffer),
		done:       make(chan struct{}),
	}
}

// Updates returns the ordered stream of changes. It is closed when Run returns.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Session returns the current session context, or nil when signed out
func (c *Controller) Session() *Context {
	return c.current.Load()
}

// SendText validates text and queues it for publishing. Publish failures
// arrive later as PublishFailed updates.
func (c *Controller) SendText(text string) error {
	if err := models.ValidateInput(text); err != nil {
		return err
	}
	if c.Session() == nil {
		return apierrors.ErrNotSignedIn
	}
	return c.enqueue(request{kind: sendText, arg: text})
}

// SendPhoto queues the local file for upload. Progress and failures arrive
// as upload updates.
func (c *Controller) SendPhoto(localPath string) error {
	if strings.TrimSpace(localPath) == "" {
		return apierrors.NewValidationError("photo", apierrors.ErrEmptyMessage)
	}
	if c.Session() == nil {
		return apierrors.ErrNotSignedIn
	}
	return c.enqueue(request{kind: sendPhoto, arg: localPath})
}

// SignOut queues a sign-out
func (c *Controller) SignOut() error {
	return c.enqueue(request{kind: signOut})
}

func (c *Controller) enqueue(r request) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.requests <- r:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// Run processes events until ctx is cancelled. On return the feed is
// detached, background work has finished and the updates channel is closed.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("session controller already running")
	}

	states, unregister := c.identity.Listen()
	defer unregister()

	// Uploads outlive a sign-out but not the controller.
	taskCtx, cancelTasks := context.WithCancel(ctx)
	defer func() {
		close(c.done)
		cancelTasks()
		c.tasks.Wait()
		c.feed.Detach()
		c.session = nil
		c.current.Store(nil)
		close(c.updates)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			c.handleState(ctx, st)
		case d := <-c.deliveries:
			c.handleDelivery(ctx, d)
		case r := <-c.requests:
			c.handleRequest(ctx, taskCtx, r)
		case u := <-c.results:
			c.emit(ctx, u)
		}
	}
}

func (c *Controller) handleState(ctx context.Context, st auth.State) {
	first := !c.known
	c.known = true

	if !st.SignedIn() {
		if c.session != nil {
			c.endSession(ctx)
		} else if first {
			c.emit(ctx, Update{Kind: SignedOut})
		}
		return
	}

	if c.session != nil {
		if c.session.UID == st.User.UID {
			if c.session.DisplayName != st.User.DisplayName {
				c.session = c.session.withDisplayName(st.User.DisplayName)
				c.current.Store(c.session)
				c.emit(ctx, Update{Kind: SignedIn, Session: c.session})
			}
			return
		}
		c.endSession(ctx)
	}

	c.session = NewContext(*st.User)
	c.current.Store(c.session)
	c.logger.Info().Str("session", c.session.ID.String()).Str("uid", c.session.UID).Msg("session started")
	c.emit(ctx, Update{Kind: SignedIn, Session: c.session})

	if _, err := c.feed.Attach(ctx, c.deliveries); err != nil {
		c.logger.Error().Err(err).Msg("could not attach feed")
		c.emit(ctx, Update{Kind: FeedError, Err: err})
	}
}

// endSession discards the session context and clears the feed
func (c *Controller) endSession(ctx context.Context) {
	c.logger.Info().Str("session", c.session.ID.String()).Msg("session ended")
	c.session = nil
	c.current.Store(nil)
	c.feed.Detach()
	c.emit(ctx, Update{Kind: FeedCleared})
	c.emit(ctx, Update{Kind: SignedOut})
}

func (c *Controller) handleDelivery(ctx context.Context, d feed.Delivery) {
	msg, changed, err := c.feed.Apply(d)
	if err != nil {
		var parseErr *apierrors.ParseError
		if errors.As(err, &parseErr) {
			c.logger.Warn().Err(err).Str("key", d.Event.Key).Msg("skipping malformed message")
			return
		}
		c.emit(ctx, Update{Kind: FeedError, Err: err})
		return
	}
	if changed {
		c.emit(ctx, Update{Kind: MessageAdded, Message: msg})
	}
}

func (c *Controller) handleRequest(ctx, taskCtx context.Context, r request) {
	if r.kind == signOut {
		if c.session == nil {
			return
		}
		if err := c.identity.SignOut(); err != nil {
			c.logger.Warn().Err(err).Msg("sign out reported an error")
		}
		c.endSession(ctx)
		return
	}

	// The session may have ended since the request was queued.
	// Every UploadFailed follows its own UploadStarted.
	if c.session == nil {
		kind := PublishFailed
		if r.kind == sendPhoto {
			kind = UploadFailed
			c.emit(ctx, Update{Kind: UploadStarted, Name: photoName(r)})
		}
		c.emit(ctx, Update{Kind: kind, Name: photoName(r), Err: apierrors.ErrNotSignedIn})
		return
	}
	author := c.session.Author()

	switch r.kind {
	case sendText:
		text := r.arg
		c.spawn(func() *Update {
			if _, err := c.publisher.PublishText(taskCtx, author, text); err != nil {
				return &Update{Kind: PublishFailed, Err: err}
			}
			return nil
		})
	case sendPhoto:
		name := photoName(r)
		localPath := r.arg
		c.emit(ctx, Update{Kind: UploadStarted, Name: name})
		c.spawn(func() *Update {
			msg, err := c.uploader.Upload(taskCtx, author, localPath)
			if err != nil {
				return &Update{Kind: UploadFailed, Name: name, Err: err}
			}
			return &Update{Kind: UploadFinished, Name: name, Message: msg}
		})
	}
}

func photoName(r request) string {
	if r.kind != sendPhoto {
		return ""
	}
	return api.LastPathSegment(r.arg)
}

// spawn runs fn off the loop and hands its result back to it
func (c *Controller) spawn(fn func() *Update) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		u := fn()
		if u == nil {
			return
		}
		select {
		case c.results <- *u:
		case <-c.done:
		}
	}()
}

func (c *Controller) emit(ctx context.Context, u Update) {
	u.FeedState = c.feed.State()
	u.FeedLen = c.feed.Len()
	select {
	case c.updates <- u:
	case <-ctx.Done():
	}
}
