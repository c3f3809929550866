package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/diogo/friendlychat/internal/api"
	"github.com/diogo/friendlychat/internal/auth"
	"github.com/diogo/friendlychat/internal/chat"
	"github.com/diogo/friendlychat/internal/config"
	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/logging"
	"github.com/diogo/friendlychat/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(ctrl tui.Controller, authn tui.Authenticator, opts tui.Options) error
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(ctrl tui.Controller, authn tui.Authenticator, opts tui.Options) error {
	return tui.Run(ctrl, authn, opts)
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// NewClient creates the platform client. Tests return an api.MockClient.
	NewClient func(cfg config.Config, logger zerolog.Logger) (api.ClientInterface, error)

	// Store persists the session between runs.
	Store auth.Store

	// TUI is the terminal user interface.
	TUI TUIInterface

	// ReadPassword reads a password without echoing it.
	ReadPassword func() (string, error)

	// CopyToClipboard writes text to the system clipboard.
	CopyToClipboard func(text string) error

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		NewClient:       newPlatformClient,
		Store:           auth.FileStore(),
		TUI:             &DefaultTUI{},
		ReadPassword:    readTerminalPassword,
		CopyToClipboard: clipboard.WriteAll,
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	}
}

func newPlatformClient(cfg config.Config, logger zerolog.Logger) (api.ClientInterface, error) {
	return api.NewClient(cfg, api.WithLogger(logging.Component(logger, "api")))
}

func readTerminalPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password prompt needs a terminal")
	}
	b, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// app is what a command needs once the configuration is loaded
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	client   api.ClientInterface
	auth     *auth.Manager
	closeLog func() error
}

// openApp loads the configuration, sets up logging and creates the client and
// auth manager. Console logging goes to stderr only for non-interactive commands.
func (d *Dependencies) openApp(opts *globalOptions, interactive bool) (*app, error) {
	if opts.configDir != "" {
		config.SetConfigDir(opts.configDir)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logOpts := logging.Options{Verbose: opts.verbose || cfg.Verbose}
	if path, err := config.GetLogPath(); err == nil {
		logOpts.Path = path
	}
	if !interactive && logOpts.Verbose {
		logOpts.Console = d.Stderr
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	client, err := d.NewClient(cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	if err := client.Init(); err != nil {
		client.Close()
		_ = closeLog()
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		auth:     auth.NewManager(client, d.Store, logging.Component(logger, "auth")),
		closeLog: closeLog,
	}, nil
}

func (a *app) Close() {
	a.client.Close()
	_ = a.closeLog()
}

// requireUser restores the saved session and fails when there is none
func (a *app) requireUser(ctx context.Context) (*auth.User, error) {
	user, err := a.auth.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: run 'friendlychat login' first", apierrors.ErrNotSignedIn)
	}
	return user, nil
}

func (a *app) publisher() *chat.Publisher {
	return chat.NewPublisher(a.client, a.cfg.MessagesCollection(), logging.Component(a.logger, "publisher"))
}

func (a *app) uploader() *chat.Uploader {
	return chat.NewUploader(a.client, a.publisher(),
		chat.WithFolder(a.cfg.PhotosFolder()),
		chat.WithMaxDimension(a.cfg.PhotoMaxDimension),
		chat.WithUploaderLogger(logging.Component(a.logger, "uploader")),
	)
}
