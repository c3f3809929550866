// Package tui provides the terminal user interface for friendlychat.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/render"
)

// Color variables (updated from the palette)
var (
	colorBorder    lipgloss.Color
	colorPrimary   lipgloss.Color
	colorSecondary lipgloss.Color
	colorAccent    lipgloss.Color
	colorWarning   lipgloss.Color
	colorError     lipgloss.Color
	colorText      lipgloss.Color
	colorTextDim   lipgloss.Color
	colorTextMute  lipgloss.Color
)

// Style variables (rebuilt when the palette changes)
var (
	headerStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	subtitleStyle lipgloss.Style
	hintStyle     lipgloss.Style

	messagesAreaStyle lipgloss.Style

	// Messages written by the signed-in user sit on the right.
	ownLabelStyle    lipgloss.Style
	ownBubbleStyle   lipgloss.Style
	otherLabelStyle  lipgloss.Style
	otherBubbleStyle lipgloss.Style
	photoLinkStyle   lipgloss.Style

	inputPanelStyle lipgloss.Style
	inputLabelStyle lipgloss.Style
	counterStyle    lipgloss.Style

	statusBarStyle      lipgloss.Style
	statusKeyStyle      lipgloss.Style
	statusDescStyle     lipgloss.Style
	statusDisabledStyle lipgloss.Style
	liveStyle           lipgloss.Style
	offlineStyle        lipgloss.Style

	errorStyle  lipgloss.Style
	noticeStyle lipgloss.Style

	welcomeStyle      lipgloss.Style
	welcomeTitleStyle lipgloss.Style

	formPanelStyle   lipgloss.Style
	formTitleStyle   lipgloss.Style
	formLabelStyle   lipgloss.Style
	formFocusedStyle lipgloss.Style
	formCursorStyle  lipgloss.Style
	providerStyle    lipgloss.Style
	providerOnStyle  lipgloss.Style
	pickerPanelStyle lipgloss.Style
)

func init() {
	ApplyPalette(render.TokyoNight)
}

// ApplyPalette rebuilds all styles from p
func ApplyPalette(p render.Palette) {
	colorBorder = p.Border
	colorPrimary = p.Primary
	colorSecondary = p.Secondary
	colorAccent = p.Accent
	colorWarning = p.Warning
	colorError = p.Error
	colorText = p.Text
	colorTextDim = p.TextDim
	colorTextMute = p.TextMute

	rebuildStyles()
}

// ApplyPaletteByName applies a palette by name, falling back to the default
func ApplyPaletteByName(name string) {
	p, _ := render.PaletteByName(name)
	ApplyPalette(p)
}

func rebuildStyles() {
	headerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true)

	subtitleStyle = lipgloss.NewStyle().
		Foreground(colorTextDim)

	hintStyle = lipgloss.NewStyle().
		Foreground(colorTextMute).
		Italic(true)

	messagesAreaStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	ownLabelStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		MarginLeft(4)

	ownBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorPrimary).
		Foreground(colorText).
		Padding(0, 1).
		MarginLeft(4)

	otherLabelStyle = lipgloss.NewStyle().
		Foreground(colorSecondary).
		Bold(true)

	otherBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorSecondary).
		Foreground(colorText).
		Padding(0, 1).
		MarginRight(4)

	photoLinkStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Underline(true)

	inputPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	inputLabelStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true)

	counterStyle = lipgloss.NewStyle().
		Foreground(colorTextMute)

	statusBarStyle = lipgloss.NewStyle().
		Foreground(colorTextMute)

	statusKeyStyle = lipgloss.NewStyle().
		Foreground(colorTextDim).
		Bold(true)

	statusDescStyle = lipgloss.NewStyle().
		Foreground(colorTextMute)

	statusDisabledStyle = lipgloss.NewStyle().
		Foreground(colorTextMute).
		Strikethrough(true)

	liveStyle = lipgloss.NewStyle().
		Foreground(colorSecondary)

	offlineStyle = lipgloss.NewStyle().
		Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
		Foreground(colorError).
		Bold(true)

	noticeStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true)

	welcomeStyle = lipgloss.NewStyle().
		Foreground(colorTextDim).
		Align(lipgloss.Center)

	welcomeTitleStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		Align(lipgloss.Center)

	formPanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorPrimary).
		Padding(1, 2)

	formTitleStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		MarginBottom(1)

	formLabelStyle = lipgloss.NewStyle().
		Foreground(colorTextDim).
		Width(14)

	formFocusedStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true).
		Width(14)

	formCursorStyle = lipgloss.NewStyle().
		Foreground(colorAccent)

	providerStyle = lipgloss.NewStyle().
		Foreground(colorTextDim).
		Padding(0, 1)

	providerOnStyle = lipgloss.NewStyle().
		Foreground(colorText).
		Background(colorBorder).
		Bold(true).
		Padding(0, 1)

	pickerPanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1)
}

// FormatError returns a styled error message with a hint for the common cases.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	errStyle := lipgloss.NewStyle().Foreground(colorError)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)

	var sb strings.Builder
	sb.WriteString(errStyle.Render(fmt.Sprintf("✗ %v", err)))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	var upErr *apierrors.UploadError
	switch {
	case errors.Is(err, apierrors.ErrStreamCancelled):
		sb.WriteString(dimStyle.Render("\n  Hint: The server closed the message feed. Sign out and in again to reconnect"))
	case errors.Is(err, apierrors.ErrNotSignedIn):
		sb.WriteString(dimStyle.Render("\n  Hint: Sign in first"))
	case apierrors.IsAuthError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Try running 'friendlychat login' to refresh your session"))
	case errors.As(err, &upErr) && upErr.Stage == apierrors.StageRead:
		sb.WriteString(dimStyle.Render("\n  Hint: Check the file exists and is readable"))
	case apierrors.IsNetworkError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Check your internet connection and try again"))
	case apierrors.IsTimeoutError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Request timed out. Try again"))
	}

	return sb.String()
}
