package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/friendlychat/internal/errors"
)

// Message is a single chat entry. Exactly one of Text and PhotoURL is set.
type Message struct {
	// Key is the remote record key assigned on publish. Not part of the record body.
	Key      string `json:"-"`
	Text     string `json:"text,omitempty"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

// NewTextMessage creates a text message authored by author.
func NewTextMessage(text, author string) (Message, error) {
	if err := ValidateInput(text); err != nil {
		return Message{}, err
	}
	return Message{Text: text, Name: AuthorName(author)}, nil
}

// NewPhotoMessage creates a photo message pointing at a fetchable URL.
func NewPhotoMessage(url, author string) (Message, error) {
	if strings.TrimSpace(url) == "" {
		return Message{}, apierrors.NewValidationError("photo url", apierrors.ErrEmptyMessage)
	}
	return Message{PhotoURL: url, Name: AuthorName(author)}, nil
}

// IsPhoto reports whether the message carries a photo.
func (m Message) IsPhoto() bool {
	return m.PhotoURL != ""
}

// Body returns the text or the photo URL, whichever is set.
func (m Message) Body() string {
	if m.IsPhoto() {
		return m.PhotoURL
	}
	return m.Text
}

// Validate checks that exactly one of text and photo is present.
func (m Message) Validate() error {
	hasText := m.Text != ""
	hasPhoto := m.PhotoURL != ""
	switch {
	case hasText && hasPhoto:
		return apierrors.NewValidationError("message", fmt.Errorf("has both text and photo"))
	case !hasText && !hasPhoto:
		return apierrors.NewValidationError("message", apierrors.ErrEmptyMessage)
	}
	return nil
}

// ValidateInput checks a draft before it may be sent: it must contain a
// non-whitespace character and be at most MaxMessageLength characters.
func ValidateInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return apierrors.NewValidationError("message", apierrors.ErrEmptyMessage)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return apierrors.NewValidationError("message",
			fmt.Errorf("%w: %d characters, limit is %d",
				apierrors.ErrMessageTooLong, utf8.RuneCountInString(text), MaxMessageLength))
	}
	return nil
}

// CanSend reports whether the send control should be enabled for the draft.
func CanSend(text string) bool {
	return ValidateInput(text) == nil
}

// AuthorName returns name, or Anonymous when name is empty.
func AuthorName(name string) string {
	if strings.TrimSpace(name) == "" {
		return Anonymous
	}
	return name
}

// DecodeMessage decodes a remote record into a Message.
func DecodeMessage(key string, raw []byte) (Message, error) {
	if !gjson.ValidBytes(raw) {
		return Message{}, apierrors.NewParseError("record is not valid JSON", key)
	}
	record := gjson.ParseBytes(raw)
	if !record.IsObject() {
		return Message{}, apierrors.NewParseError("record is not an object", key)
	}

	msg := Message{
		Key:      key,
		Text:     record.Get(PathMessageText).String(),
		Name:     AuthorName(record.Get(PathMessageName).String()),
		PhotoURL: record.Get(PathMessagePhotoURL).String(),
	}
	if err := msg.Validate(); err != nil {
		return Message{}, apierrors.NewParseError(err.Error(), key)
	}
	return msg, nil
}

// Record field paths
const (
	PathMessageText     = "text"
	PathMessageName     = "name"
	PathMessagePhotoURL = "photoUrl"
)
