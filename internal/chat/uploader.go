package chat

import (
	"context"
	"path"

	"github.com/rs/zerolog"

	"github.com/diogo/friendlychat/internal/api"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/models"
)

// Storage stores blobs and resolves fetchable URLs for them
type Storage interface {
	UploadObject(ctx context.Context, objectName string, data []byte, contentType string) (*api.ObjectMetadata, error)
	DownloadURL(ctx context.Context, objectName string) (string, error)
}

// PhotoPublisher publishes photo messages
type PhotoPublisher interface {
	PublishPhoto(ctx context.Context, author, photoURL string) (models.Message, error)
}

// Uploader turns a local photo into a published photo message
type Uploader struct {
	storage      Storage
	publisher    PhotoPublisher
	folder       string
	maxDimension int
	logger       zerolog.Logger
}

// UploaderOption configures an Uploader
type UploaderOption func(*Uploader)

// WithFolder sets the storage folder photos are stored under
func WithFolder(folder string) UploaderOption {
	return func(u *Uploader) {
		u.folder = folder
	}
}

// WithMaxDimension downscales photos larger than px on either side; 0 disables it
func WithMaxDimension(px int) UploaderOption {
	return func(u *Uploader) {
		u.maxDimension = px
	}
}

// WithUploaderLogger sets the logger
func WithUploaderLogger(logger zerolog.Logger) UploaderOption {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// NewUploader creates an uploader storing photos under the default folder
func NewUploader(storage Storage, publisher PhotoPublisher, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		storage:   storage,
		publisher: publisher,
		folder:    models.DefaultPhotosPath,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ObjectName returns where a local file is stored: the folder plus the last
// segment of the local path.
func (u *Uploader) ObjectName(localPath string) string {
	return path.Join(u.folder, api.LastPathSegment(localPath))
}

// Upload stores the file at localPath, resolves its URL and publishes a photo
// message authored by author. Failures are returned as an UploadError naming
// the step that failed.
func (u *Uploader) Upload(ctx context.Context, author, localPath string) (models.Message, error) {
	photo, err := api.ReadPhoto(localPath, u.maxDimension)
	if err != nil {
		return models.Message{}, apierrors.NewUploadError(apierrors.StageRead, u.ObjectName(localPath), err)
	}

	// A re-encoded photo carries the extension of its new format.
	object := path.Join(u.folder, photo.Name)
	logger := u.logger.With().Str("object", object).Str("file", photo.Name).Logger()
	if photo.Resized {
		logger.Debug().Int("bytes", len(photo.Data)).Str("content_type", photo.ContentType).Msg("photo downscaled")
	}

	meta, err := u.storage.UploadObject(ctx, object, photo.Data, photo.ContentType)
	if err != nil {
		logger.Warn().Err(err).Msg("photo upload failed")
		return models.Message{}, apierrors.NewUploadError(apierrors.StageStore, object, err)
	}
	if meta != nil && meta.Name != "" {
		object = meta.Name
	}

	url, err := u.storage.DownloadURL(ctx, object)
	if err != nil {
		logger.Warn().Err(err).Msg("could not resolve photo url")
		return models.Message{}, apierrors.NewUploadError(apierrors.StageResolve, object, err)
	}

	msg, err := u.publisher.PublishPhoto(ctx, author, url)
	if err != nil {
		return models.Message{}, apierrors.NewUploadError(apierrors.StagePublish, object, err)
	}
	logger.Info().Str("key", msg.Key).Msg("photo published")
	return msg, nil
}
