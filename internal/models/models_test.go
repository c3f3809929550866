package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/diogo/friendlychat/internal/errors"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"plain text", "hello", nil},
		{"surrounding whitespace kept", "  hi  ", nil},
		{"empty", "", apierrors.ErrEmptyMessage},
		{"spaces only", "   ", apierrors.ErrEmptyMessage},
		{"tabs and newlines", "\t\n \n", apierrors.ErrEmptyMessage},
		{"exactly at limit", strings.Repeat("a", MaxMessageLength), nil},
		{"over limit", strings.Repeat("a", MaxMessageLength+1), apierrors.ErrMessageTooLong},
		{"multibyte at limit", strings.Repeat("é", MaxMessageLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.True(t, CanSend(tt.input))
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, CanSend(tt.input))
		})
	}
}

func TestNewTextMessage(t *testing.T) {
	msg, err := NewTextMessage("hi", "Ana")
	require.NoError(t, err)
	assert.Equal(t, Message{Text: "hi", Name: "Ana"}, msg)
	assert.False(t, msg.IsPhoto())
	assert.NoError(t, msg.Validate())

	msg, err = NewTextMessage("hi", "")
	require.NoError(t, err)
	assert.Equal(t, Anonymous, msg.Name)

	_, err = NewTextMessage("   ", "Ana")
	assert.ErrorIs(t, err, apierrors.ErrEmptyMessage)
}

func TestNewPhotoMessage(t *testing.T) {
	msg, err := NewPhotoMessage("https://example.test/p.jpg", "Ana")
	require.NoError(t, err)
	assert.True(t, msg.IsPhoto())
	assert.Empty(t, msg.Text)
	assert.Equal(t, "https://example.test/p.jpg", msg.Body())
	assert.NoError(t, msg.Validate())

	_, err = NewPhotoMessage("", "Ana")
	assert.Error(t, err)
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"text only", Message{Text: "a", Name: "x"}, false},
		{"photo only", Message{PhotoURL: "u", Name: "x"}, false},
		{"both", Message{Text: "a", PhotoURL: "u", Name: "x"}, true},
		{"neither", Message{Name: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Message
		wantErr bool
	}{
		{
			name: "text record",
			raw:  `{"text":"hello","name":"Ana"}`,
			want: Message{Key: "k1", Text: "hello", Name: "Ana"},
		},
		{
			name: "photo record",
			raw:  `{"name":"Bo","photoUrl":"https://example.test/a.png"}`,
			want: Message{Key: "k1", Name: "Bo", PhotoURL: "https://example.test/a.png"},
		},
		{
			name: "missing name falls back to anonymous",
			raw:  `{"text":"hey"}`,
			want: Message{Key: "k1", Text: "hey", Name: Anonymous},
		},
		{name: "both fields", raw: `{"text":"a","photoUrl":"b","name":"c"}`, wantErr: true},
		{name: "no body", raw: `{"name":"c"}`, wantErr: true},
		{name: "not an object", raw: `"hello"`, wantErr: true},
		{name: "invalid json", raw: `{"text":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMessage("k1", []byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, apierrors.ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviders(t *testing.T) {
	providers := SupportedProviders()
	require.GreaterOrEqual(t, len(providers), 2)
	assert.Equal(t, "Email", ProviderName(ProviderPassword))
	assert.Equal(t, "Google", ProviderName(ProviderGoogle))
	assert.Equal(t, "github.com", ProviderName("github.com"))
}
