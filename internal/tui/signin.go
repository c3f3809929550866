package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/friendlychat/internal/auth"
	"github.com/diogo/friendlychat/internal/models"
)

const signInTimeout = 30 * time.Second

type signInField int

const (
	fieldProvider signInField = iota
	fieldEmail
	fieldPassword
	fieldName
	fieldToken
)

// signInResultMsg carries the outcome of a sign-in attempt
type signInResultMsg struct {
	user *auth.User
	err  error
}

// signInForm is the sign-in screen: a provider choice and the inputs that
// provider needs.
type signInForm struct {
	providers     []models.Provider
	provider      int
	createAccount bool

	email    textinput.Model
	password textinput.Model
	name     textinput.Model
	token    textinput.Model

	focus signInField
	busy  bool
	err   error
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Width = 40
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorAccent)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorText)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(colorTextMute)
	return ti
}

func newSignInForm(providers []models.Provider) signInForm {
	f := signInForm{
		providers: providers,
		email:     newInput("you@example.com"),
		password:  newInput("password"),
		name:      newInput("shown next to your messages (optional)"),
		token:     newInput("Google ID token"),
	}
	f.password.EchoMode = textinput.EchoPassword
	f.password.EchoCharacter = '•'
	f.token.CharLimit = 4096
	return f.focusOn(fieldEmail)
}

func (f signInForm) providerID() string {
	if len(f.providers) == 0 {
		return models.ProviderPassword
	}
	return f.providers[f.provider].ID
}

// fields lists the focusable fields for the current provider, in tab order
func (f signInForm) fields() []signInField {
	if f.providerID() == models.ProviderGoogle {
		return []signInField{fieldProvider, fieldToken}
	}
	if f.createAccount {
		return []signInField{fieldProvider, fieldEmail, fieldPassword, fieldName}
	}
	return []signInField{fieldProvider, fieldEmail, fieldPassword}
}

func (f *signInForm) input(field signInField) *textinput.Model {
	switch field {
	case fieldEmail:
		return &f.email
	case fieldPassword:
		return &f.password
	case fieldName:
		return &f.name
	case fieldToken:
		return &f.token
	}
	return nil
}

func (f signInForm) focusOn(field signInField) signInForm {
	f.focus = field
	f.email.Blur()
	f.password.Blur()
	f.name.Blur()
	f.token.Blur()
	switch field {
	case fieldEmail:
		f.email.Focus()
	case fieldPassword:
		f.password.Focus()
	case fieldName:
		f.name.Focus()
	case fieldToken:
		f.token.Focus()
	}
	return f
}

func (f signInForm) move(delta int) signInForm {
	fields := f.fields()
	idx := 0
	for i, field := range fields {
		if field == f.focus {
			idx = i
		}
	}
	idx = (idx + delta + len(fields)) % len(fields)
	return f.focusOn(fields[idx])
}

func (f signInForm) isLast() bool {
	fields := f.fields()
	return f.focus == fields[len(fields)-1]
}

// Update handles keys for the form. Esc is handled by the caller.
func (f signInForm) Update(msg tea.Msg, authn Authenticator) (signInForm, tea.Cmd) {
	if f.busy {
		return f, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return f, nil
	}

	switch key.String() {
	case "tab", "down":
		return f.move(1), nil
	case "shift+tab", "up":
		return f.move(-1), nil
	case "left", "right":
		if f.focus == fieldProvider && len(f.providers) > 1 {
			step := 1
			if key.String() == "left" {
				step = -1
			}
			f.provider = (f.provider + step + len(f.providers)) % len(f.providers)
			f.err = nil
			return f, nil
		}
	case "ctrl+n":
		if f.providerID() == models.ProviderPassword {
			f.createAccount = !f.createAccount
			if !f.createAccount && f.focus == fieldName {
				f = f.focusOn(fieldPassword)
			}
		}
		return f, nil
	case "enter":
		if f.isLast() {
			return f.submit(authn)
		}
		return f.move(1), nil
	}

	if in := f.input(f.focus); in != nil {
		var cmd tea.Cmd
		*in, cmd = in.Update(msg)
		return f, cmd
	}
	return f, nil
}

func (f signInForm) submit(authn Authenticator) (signInForm, tea.Cmd) {
	provider := f.providerID()
	email := strings.TrimSpace(f.email.Value())
	password := f.password.Value()
	name := strings.TrimSpace(f.name.Value())
	token := strings.TrimSpace(f.token.Value())
	create := f.createAccount

	if provider == models.ProviderGoogle {
		if token == "" {
			return f.focusOn(fieldToken), nil
		}
	} else if email == "" {
		return f.focusOn(fieldEmail), nil
	} else if password == "" {
		return f.focusOn(fieldPassword), nil
	}

	f.busy = true
	f.err = nil
	return f, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), signInTimeout)
		defer cancel()

		var user *auth.User
		var err error
		switch {
		case provider == models.ProviderGoogle:
			user, err = authn.SignInWithGoogle(ctx, token)
		case create:
			user, err = authn.SignUp(ctx, email, password, name)
		default:
			user, err = authn.SignInWithPassword(ctx, email, password)
		}
		return signInResultMsg{user: user, err: err}
	}
}

// finished records the outcome of a sign-in attempt
func (f signInForm) finished(msg signInResultMsg) signInForm {
	f.busy = false
	f.err = msg.err
	if msg.err == nil {
		f.password.Reset()
		f.token.Reset()
	}
	return f
}

func (f signInForm) View(width int) string {
	var b strings.Builder

	title := "Sign in to Friendly Chat"
	if f.createAccount && f.providerID() == models.ProviderPassword {
		title = "Create an account"
	}
	b.WriteString(formTitleStyle.Render(title))
	b.WriteString("\n")

	var tabs []string
	for i, p := range f.providers {
		style := providerStyle
		if i == f.provider {
			style = providerOnStyle
		}
		tabs = append(tabs, style.Render(p.DisplayName))
	}
	b.WriteString(f.row(fieldProvider, "Provider", lipgloss.JoinHorizontal(lipgloss.Center, tabs...)))

	for _, field := range f.fields()[1:] {
		label := map[signInField]string{
			fieldEmail:    "Email",
			fieldPassword: "Password",
			fieldName:     "Display name",
			fieldToken:    "ID token",
		}[field]
		b.WriteString(f.row(field, label, f.input(field).View()))
	}

	b.WriteString("\n")
	switch {
	case f.busy:
		b.WriteString(noticeStyle.Render("Signing in..."))
	case f.err != nil:
		b.WriteString(FormatError(f.err))
	}
	b.WriteString("\n\n")

	shortcuts := []string{
		statusKeyStyle.Render("Tab") + statusDescStyle.Render(" Next"),
		statusKeyStyle.Render("←→") + statusDescStyle.Render(" Provider"),
		statusKeyStyle.Render("Enter") + statusDescStyle.Render(" Sign in"),
	}
	if f.providerID() == models.ProviderPassword {
		shortcuts = append(shortcuts, statusKeyStyle.Render("Ctrl+N")+statusDescStyle.Render(" New account"))
	}
	shortcuts = append(shortcuts, statusKeyStyle.Render("Esc")+statusDescStyle.Render(" Cancel"))
	b.WriteString(strings.Join(shortcuts, "  │  "))

	boxWidth := width - 8
	if boxWidth < 50 {
		boxWidth = 50
	}
	return formPanelStyle.Width(boxWidth).Render(b.String())
}

func (f signInForm) row(field signInField, label, value string) string {
	cursor := "  "
	labelStyle := formLabelStyle
	if f.focus == field {
		cursor = formCursorStyle.Render("▸ ")
		labelStyle = formFocusedStyle
	}
	return cursor + labelStyle.Render(label) + value + "\n"
}
