package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/models"
)

// Reconnect backoff bounds
const (
	BackoffMinInterval = 1 * time.Second
	BackoffMaxInterval = 60 * time.Second
	BackoffMultiplier  = 1.5
)

const (
	// maxEventSize bounds a single event; the first event carries the whole collection.
	maxEventSize = 32 * 1024 * 1024
	maxRedirects = 5
	streamBuffer = 64
)

// ChildEventKind identifies what happened to the subscribed collection
type ChildEventKind int

const (
	// ChildAdded carries a record appended to the collection.
	ChildAdded ChildEventKind = iota
	// Cancelled means the server ended the subscription. No further events follow.
	Cancelled
)

func (k ChildEventKind) String() string {
	switch k {
	case ChildAdded:
		return "child_added"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("ChildEventKind(%d)", int(k))
}

// ChildEvent is one notification from a collection subscription
type ChildEvent struct {
	Kind ChildEventKind
	Key  string
	// Data is the raw JSON record for ChildAdded.
	Data []byte
	// Err explains a Cancelled event.
	Err error
}

// sseEvent is a single server-sent event
type sseEvent struct {
	Name string
	Data []byte
}

var errAuthRevoked = errors.New("stream auth revoked")

// cancelSignal is returned by decodeStreamEvent for a server-side cancel
type cancelSignal struct {
	reason string
}

func (c *cancelSignal) Error() string {
	return "stream cancelled: " + c.reason
}

// Subscribe opens a live subscription to the collection at path. The first
// connection is made synchronously so that configuration and permission
// problems are returned directly. Afterwards the stream reconnects on its own
// until ctx is cancelled or the server cancels it; the channel is closed then.
//
// Reconnecting replays the whole collection, so receivers must ignore keys
// they have already seen.
func (c *Client) Subscribe(ctx context.Context, path string) (<-chan ChildEvent, error) {
	resp, err := c.openStream(ctx, path)
	if err != nil {
		return nil, apierrors.NewSubscriptionError(path, "could not open stream", err)
	}

	events := make(chan ChildEvent, streamBuffer)
	go c.runStream(ctx, path, resp, events)
	return events, nil
}

func (c *Client) openStream(ctx context.Context, path string) (*http.Response, error) {
	token, err := c.IDToken(ctx)
	if err != nil {
		return nil, err
	}

	target := c.databaseURL(path, token)
	for i := 0; i < maxRedirects; i++ {
		req, err := newRequest(ctx, http.MethodGet, target, nil, models.StreamHeaders())
		if err != nil {
			return nil, err
		}

		resp, err := c.streamClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, apierrors.NewNetworkError(endpointName(target), err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode == http.StatusTemporaryRedirect || resp.StatusCode == http.StatusFound:
			// The database may point us at the server that owns the namespace.
			location := resp.Header.Get("Location")
			_ = resp.Body.Close()
			if location == "" {
				return nil, apierrors.NewAPIError(resp.StatusCode, endpointName(target), "redirect without location")
			}
			target = location
			continue
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()
			return nil, responseError(resp.StatusCode, endpointName(target), body)
		}
	}
	return nil, apierrors.NewAPIError(0, endpointName(target), "too many redirects")
}

// runStream reads events from resp and reconnects until the subscription ends.
func (c *Client) runStream(ctx context.Context, path string, resp *http.Response, out chan<- ChildEvent) {
	defer close(out)
	logger := c.logger.With().Str("path", path).Logger()

	var sleep time.Duration
	for {
		err := readSSE(resp.Body, func(ev sseEvent) error {
			children, err := decodeStreamEvent(ev)
			if err != nil {
				return err
			}
			for _, child := range children {
				select {
				case out <- child:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		_ = resp.Body.Close()

		if ctx.Err() != nil {
			return
		}

		var cancel *cancelSignal
		switch {
		case errors.As(err, &cancel):
			logger.Warn().Str("reason", cancel.reason).Msg("subscription cancelled by server")
			c.emitCancelled(ctx, out, apierrors.NewSubscriptionError(path, cancel.reason, apierrors.ErrStreamCancelled))
			return
		case errors.Is(err, errAuthRevoked):
			logger.Info().Msg("stream credentials revoked, refreshing token")
			if refreshErr := c.RefreshToken(ForceRefresh(ctx)); refreshErr != nil {
				if ctx.Err() != nil {
					return
				}
				c.emitCancelled(ctx, out, apierrors.NewSubscriptionError(path, "credentials revoked", refreshErr))
				return
			}
		case err != nil:
			logger.Warn().Err(err).Msg("stream read failed")
		default:
			logger.Debug().Msg("stream closed by server")
		}

		// Reconnect, backing off between failed attempts.
		for {
			c.backoff(&sleep)
			logger.Debug().Dur("delay", sleep).Msg("reconnecting stream")
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return
			}

			resp, err = c.openStream(ctx, path)
			if err == nil {
				sleep = 0
				break
			}
			if ctx.Err() != nil {
				return
			}
			if apierrors.IsAuthError(err) {
				c.emitCancelled(ctx, out, apierrors.NewSubscriptionError(path, "permission denied", err))
				return
			}
			logger.Warn().Err(err).Msg("stream reconnect failed")
		}
	}
}

func (c *Client) emitCancelled(ctx context.Context, out chan<- ChildEvent, err error) {
	select {
	case out <- ChildEvent{Kind: Cancelled, Err: err}:
	case <-ctx.Done():
	}
}

// backoff grows d from backoffMin by BackoffMultiplier and holds it at
// backoffMax. The caller zeroes d after a successful connect.
func (c *Client) backoff(d *time.Duration) {
	if *d == 0 {
		*d = c.backoffMin
		return
	}
	*d = min(time.Duration(float64(*d)*BackoffMultiplier).Truncate(time.Millisecond), c.backoffMax)
}

// readSSE parses a text/event-stream body and calls fn for every event.
// It returns nil when the body ends cleanly, or the first error from fn.
func readSSE(r io.Reader, fn func(sseEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var name string
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if name != "" || data.Len() > 0 {
				if err := fn(sseEvent{Name: name, Data: bytes.Clone(data.Bytes())}); err != nil {
					return err
				}
			}
			name = ""
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}
	return scanner.Err()
}

// decodeStreamEvent turns a database event into child events.
//
// Only additions are reported: the full snapshot put at "/", a put of a
// single new child, and patches merging children at the root. Deeper paths
// and null data (changes and removals) are ignored.
func decodeStreamEvent(ev sseEvent) ([]ChildEvent, error) {
	switch ev.Name {
	case "keep-alive":
		return nil, nil
	case "cancel":
		reason := gjson.ParseBytes(ev.Data).String()
		if reason == "" {
			reason = "permission denied"
		}
		return nil, &cancelSignal{reason: reason}
	case "auth_revoked":
		return nil, errAuthRevoked
	case "put", "patch":
	default:
		return nil, nil
	}

	if !gjson.ValidBytes(ev.Data) {
		return nil, apierrors.NewParseError("event payload is not JSON", ev.Name)
	}
	payload := gjson.ParseBytes(ev.Data)
	path := strings.Trim(payload.Get(PathEventPath).String(), "/")
	data := payload.Get(PathEventData)

	if path == "" {
		if !data.IsObject() {
			return nil, nil
		}
		return childrenInKeyOrder(data), nil
	}

	if ev.Name != "put" || strings.Contains(path, "/") || data.Type == gjson.Null {
		return nil, nil
	}
	return []ChildEvent{{Kind: ChildAdded, Key: path, Data: []byte(data.Raw)}}, nil
}

// childrenInKeyOrder lists the members of obj as ChildAdded events sorted by key.
func childrenInKeyOrder(obj gjson.Result) []ChildEvent {
	children := make(map[string]gjson.Result)
	keys := make([]string, 0)
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Null {
			return true
		}
		k := key.String()
		if _, seen := children[k]; !seen {
			keys = append(keys, k)
		}
		children[k] = value
		return true
	})
	sort.Strings(keys)

	events := make([]ChildEvent, 0, len(keys))
	for _, k := range keys {
		events = append(events, ChildEvent{Kind: ChildAdded, Key: k, Data: []byte(children[k].Raw)})
	}
	return events
}
