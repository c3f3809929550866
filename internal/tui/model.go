package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/friendlychat/internal/auth"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/feed"
	"github.com/diogo/friendlychat/internal/models"
	"github.com/diogo/friendlychat/internal/render"
	"github.com/diogo/friendlychat/internal/session"
)

const noticeDuration = 3 * time.Second

// photoTypes are offered by the attachment picker
var photoTypes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// clipboardWrite is replaced in tests
var clipboardWrite = clipboard.WriteAll

// Message types for the TUI
type (
	updateMsg        session.Update
	updatesClosedMsg struct{}
	errMsg           struct {
		err error
	}
	clearNoticeMsg struct {
		id int
	}
	copiedMsg struct {
		url string
		err error
	}
)

// Controller is the part of the session controller the chat screen drives
type Controller interface {
	Updates() <-chan session.Update
	SendText(text string) error
	SendPhoto(localPath string) error
	SignOut() error
}

// Authenticator signs users in from the sign-in screen
type Authenticator interface {
	Providers() []models.Provider
	SignInWithPassword(ctx context.Context, email, password string) (*auth.User, error)
	SignUp(ctx context.Context, email, password, displayName string) (*auth.User, error)
	SignInWithGoogle(ctx context.Context, googleIDToken string) (*auth.User, error)
}

// Options configures the chat screens
type Options struct {
	Render render.Options
	// StartDir is where the attachment picker opens. Defaults to the working directory.
	StartDir string
}

type screen int

const (
	screenConnecting screen = iota
	screenSignIn
	screenChat
)

// Model is the TUI state. It shows the sign-in screen while signed out and
// the chat screen while signed in.
type Model struct {
	ctrl  Controller
	authn Authenticator
	opts  Options

	screen    screen
	form      signInForm
	session   *session.Context
	messages  []models.Message
	feedState feed.State
	uploads   int

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	picker   filepicker.Model
	picking  bool

	notice    string
	noticeID  int
	err       error
	cancelled bool
	ready     bool

	width  int
	height int
}

// NewModel creates the TUI model
func NewModel(ctrl Controller, authn Authenticator, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.CharLimit = models.MaxMessageLength
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	if opts.StartDir == "" {
		opts.StartDir, _ = os.Getwd()
	}
	if opts.Render.Width == 0 {
		opts.Render = render.DefaultOptions()
	}

	return Model{
		ctrl:     ctrl,
		authn:    authn,
		opts:     opts,
		form:     newSignInForm(authn.Providers()),
		textarea: ta,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForUpdate(m.ctrl.Updates()),
	)
}

// waitForUpdate delivers the next session update as a tea.Msg
func waitForUpdate(updates <-chan session.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg(u)
	}
}

func newPicker(dir string) filepicker.Model {
	fp := filepicker.New()
	fp.CurrentDirectory = dir
	fp.AllowedTypes = photoTypes
	fp.ShowHidden = false
	return fp
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case updateMsg:
		cmds = append(cmds, m.applyUpdate(session.Update(msg)), waitForUpdate(m.ctrl.Updates()))
		return m, tea.Batch(cmds...)

	case updatesClosedMsg:
		return m, tea.Quit

	case signInResultMsg:
		m.form = m.form.finished(msg)
		if msg.err == nil {
			return m, m.setNotice("Signed in!")
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case clearNoticeMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, m.setNotice("Copied photo link")

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.screen {
		case screenSignIn:
			if msg.String() == "esc" {
				m.cancelled = true
				m.notice = "Sign in cancelled!"
				return m, tea.Quit
			}
			m.form, cmd = m.form.Update(msg, m.authn)
			return m, cmd
		case screenChat:
			return m.updateChat(msg)
		default:
			if msg.String() == "esc" {
				return m, tea.Quit
			}
		}
		return m, nil
	}

	// Directory listings and other internal messages of the picker
	if m.picking {
		m.picker, cmd = m.picker.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 3
	inputHeight := 5
	statusHeight := 2
	vpHeight := height - headerHeight - inputHeight - statusHeight - 2
	if vpHeight < 5 {
		vpHeight = 5
	}
	contentWidth := width - 4

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 4)
	m.updateViewport()
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if m.picking {
		if msg.String() == "esc" {
			m.picking = false
			return m, nil
		}
		m.picker, cmd = m.picker.Update(msg)
		if ok, path := m.picker.DidSelectFile(msg); ok {
			m.picking = false
			return m, tea.Batch(cmd, m.sendPhoto(path))
		}
		return m, cmd
	}

	switch msg.String() {
	case "esc":
		return m, tea.Quit

	case "ctrl+o":
		m.picking = true
		m.err = nil
		m.picker = newPicker(m.opts.StartDir)
		return m, m.picker.Init()

	case "ctrl+l":
		return m, m.signOut()

	case "ctrl+y":
		return m, m.copyLatestPhoto()

	case "enter":
		input := m.textarea.Value()
		switch strings.TrimSpace(input) {
		case "/signout", "/logout":
			m.textarea.Reset()
			return m, m.signOut()
		case "/quit", "/exit":
			return m, tea.Quit
		}
		// Send stays disabled until there is something to send.
		if !models.CanSend(input) {
			return m, nil
		}
		m.err = nil
		m.textarea.Reset()
		return m, m.sendText(input)
	}

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// applyUpdate folds a session update into the model
func (m *Model) applyUpdate(u session.Update) tea.Cmd {
	m.feedState = u.FeedState
	var cmd tea.Cmd

	switch u.Kind {
	case session.SignedIn:
		m.session = u.Session
		m.screen = screenChat
		m.err = nil
		m.textarea.Focus()
	case session.SignedOut:
		m.session = nil
		m.screen = screenSignIn
		m.picking = false
		m.messages = nil
		m.form = newSignInForm(m.authn.Providers())
		m.updateViewport()
	case session.FeedCleared:
		m.messages = nil
		m.updateViewport()
	case session.MessageAdded:
		m.messages = append(m.messages, u.Message)
		m.updateViewport()
		m.viewport.GotoBottom()
	case session.FeedError, session.PublishFailed:
		m.err = u.Err
	case session.UploadStarted:
		m.uploads++
		cmd = m.setNotice(fmt.Sprintf("Uploading %s...", u.Name))
	case session.UploadFinished:
		m.uploads = max(m.uploads-1, 0)
		cmd = m.setNotice(fmt.Sprintf("Sent %s", u.Name))
	case session.UploadFailed:
		m.uploads = max(m.uploads-1, 0)
		m.err = u.Err
	}
	return cmd
}

func (m *Model) setNotice(text string) tea.Cmd {
	m.noticeID++
	m.notice = text
	id := m.noticeID
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return clearNoticeMsg{id: id}
	})
}

func (m Model) sendText(text string) tea.Cmd {
	return func() tea.Msg {
		if err := m.ctrl.SendText(text); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m Model) sendPhoto(path string) tea.Cmd {
	return func() tea.Msg {
		if err := m.ctrl.SendPhoto(path); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m Model) signOut() tea.Cmd {
	return func() tea.Msg {
		if err := m.ctrl.SignOut(); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

// latestPhotoURL returns the URL of the newest photo message
func (m Model) latestPhotoURL() string {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].IsPhoto() {
			return m.messages[i].PhotoURL
		}
	}
	return ""
}

func (m Model) copyLatestPhoto() tea.Cmd {
	url := m.latestPhotoURL()
	if url == "" {
		return nil
	}
	return func() tea.Msg {
		return copiedMsg{url: url, err: clipboardWrite(url)}
	}
}

func (m Model) isOwn(msg models.Message) bool {
	return m.session != nil && msg.Name == m.session.Author()
}

// updateViewport refreshes the viewport content with styled messages
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6
	if bubbleWidth < 10 {
		bubbleWidth = 10
	}

	for i, msg := range m.messages {
		if i > 0 {
			content.WriteString("\n")
		}

		labelStyle, bubbleStyle := otherLabelStyle, otherBubbleStyle
		if m.isOwn(msg) {
			labelStyle, bubbleStyle = ownLabelStyle, ownBubbleStyle
		}

		var body string
		if msg.IsPhoto() {
			body = "📷 " + photoLinkStyle.Render(msg.PhotoURL)
		} else {
			body = render.MessageText(msg.Text, m.opts.Render.WithWidth(bubbleWidth-4))
		}

		content.WriteString(labelStyle.Render(msg.Name) + "\n")
		content.WriteString(bubbleStyle.Width(bubbleWidth).Render(body))
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return hintStyle.Render("  Initializing...")
	}

	switch m.screen {
	case screenConnecting:
		return hintStyle.Render("  Connecting...")
	case screenSignIn:
		return m.renderSignIn()
	}
	return m.renderChat()
}

func (m Model) renderSignIn() string {
	sections := []string{m.form.View(m.width)}
	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, sections...))
}

func (m Model) renderChat() string {
	var sections []string
	contentWidth := m.width - 4

	// Header
	status := liveStyle.Render("● live")
	if m.feedState != feed.Attached {
		status = offlineStyle.Render("○ offline")
	}
	headerParts := []string{
		titleStyle.Render("Friendly Chat"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.session.Author()),
		hintStyle.Render("  •  "),
		status,
		hintStyle.Render(fmt.Sprintf("  •  %d messages", len(m.messages))),
	}
	header := headerStyle.Width(contentWidth).Render(lipgloss.JoinHorizontal(lipgloss.Center, headerParts...))
	sections = append(sections, header)

	// Messages or attachment picker
	var body string
	switch {
	case m.picking:
		body = pickerPanelStyle.Width(contentWidth).Height(m.viewport.Height).Render(
			inputLabelStyle.Render("Choose a photo") + "\n" + m.picker.View())
	case len(m.messages) == 0:
		body = messagesAreaStyle.Width(contentWidth).Height(m.viewport.Height).Render(m.renderWelcome())
	default:
		body = messagesAreaStyle.Width(contentWidth).Height(m.viewport.Height).Render(m.viewport.View())
	}
	sections = append(sections, body)

	// Input
	count := utf8.RuneCountInString(m.textarea.Value())
	label := lipgloss.JoinHorizontal(lipgloss.Center,
		inputLabelStyle.Render("Message"),
		counterStyle.Render(fmt.Sprintf("  %d/%d", count, models.MaxMessageLength)),
	)
	input := inputPanelStyle.Width(contentWidth).Render(lipgloss.JoinVertical(lipgloss.Left, label, m.textarea.View()))
	sections = append(sections, input)

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(" "+m.notice))
	}
	sections = append(sections, m.renderStatusBar(contentWidth))
	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	content := lipgloss.JoinVertical(lipgloss.Center,
		welcomeTitleStyle.Width(width).Render("No messages yet"),
		"",
		welcomeStyle.Width(width).Render("Say hello, or press Ctrl+O to share a photo"),
	)
	top := (m.viewport.Height - lipgloss.Height(content)) / 2
	if top < 0 {
		top = 0
	}
	return strings.Repeat("\n", top) + content
}

// renderStatusBar renders the shortcuts. Send is dimmed while the input cannot be sent.
func (m Model) renderStatusBar(width int) string {
	send := statusKeyStyle.Render("Enter") + statusDescStyle.Render(" Send")
	if !models.CanSend(m.textarea.Value()) {
		send = statusDisabledStyle.Render("Enter Send")
	}

	items := []string{
		send,
		statusKeyStyle.Render("Ctrl+O") + statusDescStyle.Render(" Photo"),
		statusKeyStyle.Render("Ctrl+Y") + statusDescStyle.Render(" Copy link"),
		statusKeyStyle.Render("Ctrl+L") + statusDescStyle.Render(" Sign out"),
		statusKeyStyle.Render("Esc") + statusDescStyle.Render(" Quit"),
	}
	if m.uploads > 0 {
		items = append(items, noticeStyle.Render(fmt.Sprintf("↑ %d uploading", m.uploads)))
	}
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

// Cancelled reports whether the user left the sign-in screen with Esc
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Run starts the TUI and blocks until it exits. Leaving the sign-in screen
// returns ErrSignInCancelled.
func Run(ctrl Controller, authn Authenticator, opts Options) error {
	p := tea.NewProgram(NewModel(ctrl, authn, opts), tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.Cancelled() {
		return apierrors.ErrSignInCancelled
	}
	return nil
}
