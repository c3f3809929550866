package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/feed"
	"github.com/diogo/friendlychat/internal/logging"
	"github.com/diogo/friendlychat/internal/render"
	"github.com/diogo/friendlychat/internal/session"
	"github.com/diogo/friendlychat/internal/tui"
)

func newChatCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat",
		Long: `Start the interactive chat.

Shows the sign-in screen when no saved session exists, then the live message
feed. Press Ctrl+O to share a photo, Ctrl+L to sign out and Esc to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, deps, opts)
		},
	}
}

func runChat(cmd *cobra.Command, deps *Dependencies, opts *globalOptions) error {
	a, err := deps.openApp(opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// A session that can't be restored only means starting at the sign-in screen.
	if _, err := a.auth.Restore(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("could not restore session")
	}

	messages := feed.New(a.client, a.cfg.MessagesCollection(), logging.Component(a.logger, "feed"))
	ctrl := session.NewController(a.auth, messages, a.publisher(), a.uploader(), logging.Component(a.logger, "session"))

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	tui.ApplyPaletteByName(a.cfg.TUITheme)
	tuiErr := deps.TUI.RunChat(ctrl, a.auth, tui.Options{
		Render: render.OptionsFromConfig(a.cfg.Markdown),
	})

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn().Err(err).Msg("session controller stopped with error")
	}

	if errors.Is(tuiErr, apierrors.ErrSignInCancelled) {
		fmt.Fprintln(deps.Stderr, "Sign in cancelled!")
		return nil
	}
	return tuiErr
}
