package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/friendlychat/internal/api"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/models"
)

func TestPublishText(t *testing.T) {
	mock := &api.MockClient{PushKeys: []string{"-Nkey1"}}
	p := NewPublisher(mock, "messages", zerolog.Nop())

	msg, err := p.PublishText(context.Background(), "Ana", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, models.Message{Key: "-Nkey1", Text: "  hello  ", Name: "Ana"}, msg)
	assert.Equal(t, []string{"messages"}, mock.PushedPaths)

	pushed := mock.PushedValues()
	require.Len(t, pushed, 1)
	assert.Equal(t, models.Message{Text: "  hello  ", Name: "Ana"}, pushed[0])
}

func TestPublishText_AnonymousAuthor(t *testing.T) {
	p := NewPublisher(&api.MockClient{}, "messages", zerolog.Nop())

	msg, err := p.PublishText(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, models.Anonymous, msg.Name)
}

func TestPublishText_Rejected(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", apierrors.ErrEmptyMessage},
		{"whitespace", " \t\n", apierrors.ErrEmptyMessage},
		{"too long", string(make([]rune, models.MaxMessageLength+1)), apierrors.ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &api.MockClient{}
			p := NewPublisher(mock, "messages", zerolog.Nop())

			_, err := p.PublishText(context.Background(), "Ana", tt.text)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, mock.PushedValues())
		})
	}
}

func TestPublishText_PushError(t *testing.T) {
	mock := &api.MockClient{PushErr: apierrors.NewAPIError(401, "db", "Permission denied")}
	p := NewPublisher(mock, "messages", zerolog.Nop())

	_, err := p.PublishText(context.Background(), "Ana", "hi")
	assert.True(t, apierrors.IsAuthError(err))
}

func TestPublishPhoto(t *testing.T) {
	mock := &api.MockClient{}
	p := NewPublisher(mock, "messages", zerolog.Nop())

	msg, err := p.PublishPhoto(context.Background(), "Ana", "https://cdn.test/cat.jpg")
	require.NoError(t, err)
	assert.True(t, msg.IsPhoto())
	assert.Empty(t, msg.Text)
	assert.Equal(t, "-Mock0001", msg.Key)

	_, err = p.PublishPhoto(context.Background(), "Ana", "")
	assert.ErrorIs(t, err, apierrors.ErrEmptyMessage)
}

func writePhoto(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.jpg")
	require.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff\xe0 not really a jpeg"), 0o600))
	return path
}

func TestUpload(t *testing.T) {
	mock := &api.MockClient{DownloadURLVal: "https://storage.test/chat_photos%2Fcat.jpg?alt=media&token=t"}
	u := NewUploader(mock, NewPublisher(mock, "messages", zerolog.Nop()))

	msg, err := u.Upload(context.Background(), "Ana", writePhoto(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"chat_photos/cat.jpg"}, mock.UploadedObjects)
	assert.Equal(t, "Ana", msg.Name)
	assert.Equal(t, mock.DownloadURLVal, msg.PhotoURL)
	assert.Empty(t, msg.Text)
}

func TestUpload_CustomFolder(t *testing.T) {
	mock := &api.MockClient{DownloadURLVal: "https://storage.test/x"}
	u := NewUploader(mock, NewPublisher(mock, "messages", zerolog.Nop()), WithFolder("room42"), WithMaxDimension(100))

	_, err := u.Upload(context.Background(), "Ana", writePhoto(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"room42/cat.jpg"}, mock.UploadedObjects)
}

func TestUpload_Stages(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		mock      *api.MockClient
		path      string
		wantStage string
	}{
		{"read", &api.MockClient{}, "/does/not/exist.png", apierrors.StageRead},
		{"store", &api.MockClient{UploadErr: boom}, "", apierrors.StageStore},
		{"resolve", &api.MockClient{DownloadURLErr: boom}, "", apierrors.StageResolve},
		{"publish", &api.MockClient{DownloadURLVal: "https://x", PushErr: boom}, "", apierrors.StagePublish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = writePhoto(t)
			}
			u := NewUploader(tt.mock, NewPublisher(tt.mock, "messages", zerolog.Nop()))

			_, err := u.Upload(context.Background(), "Ana", path)
			var upErr *apierrors.UploadError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, tt.wantStage, upErr.Stage)
			assert.Empty(t, tt.mock.PushedValues())
		})
	}
}

func TestObjectName(t *testing.T) {
	mock := &api.MockClient{}
	u := NewUploader(mock, NewPublisher(mock, "messages", zerolog.Nop()))
	assert.Equal(t, "chat_photos/dog.png", u.ObjectName("/home/ana/dog.png"))
	assert.Equal(t, "chat_photos/1234", u.ObjectName("content://media/external/images/media/1234"))
	assert.Equal(t, "chat_photos/shot:1.jpg", u.ObjectName("shot:1.jpg"))
}

func TestUpload_ColonInFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot:1.jpg")
	require.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff\xe0 not really a jpeg"), 0o600))
	mock := &api.MockClient{DownloadURLVal: "https://storage.test/x"}
	u := NewUploader(mock, NewPublisher(mock, "messages", zerolog.Nop()))

	_, err := u.Upload(context.Background(), "Ana", path)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat_photos/shot:1.jpg"}, mock.UploadedObjects)
}
