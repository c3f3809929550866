// Package chat sends messages and photo attachments to the shared room.
package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/diogo/friendlychat/internal/models"
)

// Pusher appends records to a remote ordered collection
type Pusher interface {
	Push(ctx context.Context, path string, value any) (string, error)
}

// Publisher appends messages to the messages collection
type Publisher struct {
	db     Pusher
	path   string
	logger zerolog.Logger
}

// NewPublisher creates a publisher writing to the collection at path
func NewPublisher(db Pusher, path string, logger zerolog.Logger) *Publisher {
	return &Publisher{db: db, path: path, logger: logger}
}

// PublishText sends a text message. The text is validated and sent as typed.
func (p *Publisher) PublishText(ctx context.Context, author, text string) (models.Message, error) {
	msg, err := models.NewTextMessage(text, author)
	if err != nil {
		return models.Message{}, err
	}
	return p.publish(ctx, msg)
}

// PublishPhoto sends a message pointing at an uploaded photo
func (p *Publisher) PublishPhoto(ctx context.Context, author, photoURL string) (models.Message, error) {
	msg, err := models.NewPhotoMessage(photoURL, author)
	if err != nil {
		return models.Message{}, err
	}
	return p.publish(ctx, msg)
}

func (p *Publisher) publish(ctx context.Context, msg models.Message) (models.Message, error) {
	key, err := p.db.Push(ctx, p.path, msg)
	if err != nil {
		p.logger.Warn().Err(err).Bool("photo", msg.IsPhoto()).Msg("publish failed")
		return models.Message{}, err
	}
	msg.Key = key
	p.logger.Debug().Str("key", key).Bool("photo", msg.IsPhoto()).Msg("message published")
	return msg, nil
}
