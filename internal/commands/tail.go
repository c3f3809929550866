package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	apierrors "github.com/diogo/friendlychat/internal/errors"
	"github.com/diogo/friendlychat/internal/feed"
	"github.com/diogo/friendlychat/internal/logging"
	"github.com/diogo/friendlychat/internal/models"
)

const defaultTailIdle = 3 * time.Second

var (
	nameStyle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	photoStyle = lipgloss.NewStyle().Foreground(colorPhoto).Underline(true)
)

type tailOptions struct {
	follow bool
	idle   time.Duration
}

func newTailCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	to := &tailOptions{}
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the chat messages",
		Long: `Attach to the message feed and print every message in arrival order.

Without --follow the command exits once no message has arrived for --idle.
With --follow it keeps printing new messages until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd, deps, opts, to)
		},
	}
	cmd.Flags().BoolVarP(&to.follow, "follow", "f", false, "Keep printing new messages")
	cmd.Flags().DurationVar(&to.idle, "idle", defaultTailIdle, "Exit after this long without messages (ignored with --follow)")
	return cmd
}

func runTail(cmd *cobra.Command, deps *Dependencies, opts *globalOptions, to *tailOptions) error {
	a, err := deps.openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := a.requireUser(ctx); err != nil {
		return err
	}

	messages := feed.New(a.client, a.cfg.MessagesCollection(), logging.Component(a.logger, "feed"))
	deliveries := make(chan feed.Delivery, 64)
	if _, err := messages.Attach(ctx, deliveries); err != nil {
		return err
	}
	defer messages.Detach()

	return followFeed(ctx, messages, deliveries, deps.Stdout, to)
}

// followFeed prints deliveries until ctx ends, the feed is cancelled or, unless
// following, the feed has been quiet for to.idle.
func followFeed(ctx context.Context, messages *feed.Feed, deliveries <-chan feed.Delivery, out io.Writer, to *tailOptions) error {
	var idle <-chan time.Time
	var timer *time.Timer
	if !to.follow {
		timer = time.NewTimer(to.idle)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-idle:
			return nil
		case d := <-deliveries:
			msg, added, err := messages.Apply(d)
			if err != nil {
				var parseErr *apierrors.ParseError
				if errors.As(err, &parseErr) {
					// Undecodable records are skipped.
					continue
				}
				return err
			}
			if !added {
				continue
			}
			fmt.Fprintln(out, formatMessage(msg))
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(to.idle)
			}
		}
	}
}

func formatMessage(msg models.Message) string {
	name := nameStyle.Render(msg.Name)
	if msg.IsPhoto() {
		return fmt.Sprintf("%s: 📷 %s", name, photoStyle.Render(msg.PhotoURL))
	}
	return fmt.Sprintf("%s: %s", name, msg.Text)
}
