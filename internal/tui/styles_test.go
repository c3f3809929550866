package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/render"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "nil",
			err:      nil,
			contains: nil,
		},
		{
			name:     "stream cancelled",
			err:      apierrors.NewSubscriptionError("messages", "permission denied", apierrors.ErrStreamCancelled),
			contains: []string{"permission denied", "Sign out and in again"},
		},
		{
			name:     "not signed in",
			err:      fmt.Errorf("send: %w", apierrors.ErrNotSignedIn),
			contains: []string{"not signed in", "Sign in first"},
		},
		{
			name:     "auth",
			err:      apierrors.NewAuthErrorWithCode("TOKEN_EXPIRED"),
			contains: []string{"friendlychat login"},
		},
		{
			name:     "unreadable photo",
			err:      apierrors.NewUploadError(apierrors.StageRead, "chat_photos/cat.jpg", errors.New("no such file")),
			contains: []string{"cat.jpg", "readable"},
		},
		{
			name:     "http status",
			err:      apierrors.NewAPIError(503, "https://demo.firebaseio.com/messages.json", "unavailable"),
			contains: []string{"HTTP Status: 503"},
		},
		{
			name:     "network",
			err:      apierrors.NewNetworkError("https://demo.firebaseio.com", errors.New("connection refused")),
			contains: []string{"internet connection"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatError(tt.err)
			if tt.err == nil && got != "" {
				t.Errorf("FormatError(nil) = %q", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("FormatError() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestApplyPaletteByName(t *testing.T) {
	t.Cleanup(func() { ApplyPalette(render.TokyoNight) })

	ApplyPaletteByName("nord")
	nord, _ := render.PaletteByName("nord")
	if colorPrimary != nord.Primary {
		t.Errorf("colorPrimary = %v, want %v", colorPrimary, nord.Primary)
	}

	ApplyPaletteByName("no-such-theme")
	if colorPrimary != render.TokyoNight.Primary {
		t.Errorf("unknown theme should fall back to tokyonight, got %v", colorPrimary)
	}
}
