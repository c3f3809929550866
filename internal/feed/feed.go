// Package feed keeps the local, append-only list of chat messages in step
// with the remote messages collection.
package feed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/diogo/friendlychat/internal/api"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/models"
)

// State is the subscription state of a Feed
type State int

const (
	// Detached means no subscription is active.
	Detached State = iota
	// Attached means remote additions are being delivered.
	Attached
)

func (s State) String() string {
	switch s {
	case Detached:
		return "DETACHED"
	case Attached:
		return "ATTACHED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Source opens live subscriptions to a remote collection.
type Source interface {
	Subscribe(ctx context.Context, path string) (<-chan api.ChildEvent, error)
}

// Delivery is a subscription event tagged with the attachment that produced it.
type Delivery struct {
	Gen   uint64
	Event api.ChildEvent
}

// Feed is the local message list and its subscription.
//
// A Feed is not safe for concurrent use. Its owner calls Attach, Apply and
// Detach from a single goroutine; only the forwarding of events into the
// sink happens elsewhere.
type Feed struct {
	source Source
	path   string
	logger zerolog.Logger

	state    State
	gen      uint64
	cancel   context.CancelFunc
	messages []models.Message
	seen     map[string]struct{}
}

// New creates a detached feed over the collection at path.
func New(source Source, path string, logger zerolog.Logger) *Feed {
	return &Feed{
		source: source,
		path:   path,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Attach clears the list and subscribes to the collection. Every event of the
// new subscription is forwarded to sink, tagged with this attachment's
// generation, until Detach is called or ctx is cancelled.
//
// Attach returns false without doing anything when the feed is already attached.
func (f *Feed) Attach(ctx context.Context, sink chan<- Delivery) (bool, error) {
	if f.state == Attached {
		return false, nil
	}

	f.reset()
	subCtx, cancel := context.WithCancel(ctx)
	events, err := f.source.Subscribe(subCtx, f.path)
	if err != nil {
		cancel()
		return false, err
	}

	f.cancel = cancel
	f.state = Attached
	go forward(subCtx, f.gen, events, sink)

	f.logger.Debug().Uint64("gen", f.gen).Str("path", f.path).Msg("feed attached")
	return true, nil
}

func forward(ctx context.Context, gen uint64, events <-chan api.ChildEvent, sink chan<- Delivery) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			select {
			case sink <- Delivery{Gen: gen, Event: ev}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Apply processes one delivery and returns the appended message, if any.
//
// Deliveries from an earlier attachment, deliveries while detached and keys
// already in the list are dropped. A Cancelled event detaches the feed but
// keeps the list, and is returned as an error. Undecodable records are
// returned as a ParseError and not appended.
func (f *Feed) Apply(d Delivery) (models.Message, bool, error) {
	if d.Gen != f.gen || f.state != Attached {
		return models.Message{}, false, nil
	}

	switch d.Event.Kind {
	case api.Cancelled:
		f.stop()
		err := d.Event.Err
		if err == nil {
			err = apierrors.ErrStreamCancelled
		}
		f.logger.Warn().Err(err).Msg("feed subscription cancelled")
		return models.Message{}, false, err
	case api.ChildAdded:
	default:
		return models.Message{}, false, nil
	}

	key := d.Event.Key
	if _, dup := f.seen[key]; dup {
		return models.Message{}, false, nil
	}
	msg, err := models.DecodeMessage(key, d.Event.Data)
	if err != nil {
		return models.Message{}, false, err
	}

	f.seen[key] = struct{}{}
	f.messages = append(f.messages, msg)
	return msg, true, nil
}

// Detach ends the subscription and clears the list. It reports whether the
// feed was attached.
func (f *Feed) Detach() bool {
	wasAttached := f.state == Attached
	f.stop()
	f.reset()
	if wasAttached {
		f.logger.Debug().Uint64("gen", f.gen).Msg("feed detached")
	}
	return wasAttached
}

// stop cancels the subscription and moves to a new generation, so that
// deliveries already in flight are ignored.
func (f *Feed) stop() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.state = Detached
	f.gen++
}

func (f *Feed) reset() {
	f.messages = nil
	f.seen = make(map[string]struct{})
}

// Messages returns a copy of the list in arrival order.
func (f *Feed) Messages() []models.Message {
	return append([]models.Message(nil), f.messages...)
}

// Len returns the number of messages in the list.
func (f *Feed) Len() int {
	return len(f.messages)
}

// State returns the subscription state.
func (f *Feed) State() State {
	return f.state
}
