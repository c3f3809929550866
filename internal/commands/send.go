package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/friendlychat/internal/session"
)

func newSendCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>",
		Short: "Send a text message",
		Long: `Send a single text message as the signed-in user.

Arguments are joined with spaces. Messages are limited to 1000 characters and
must contain something other than whitespace.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deps.openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			user, err := a.requireUser(ctx)
			if err != nil {
				return err
			}

			msg, err := a.publisher().PublishText(ctx, session.NewContext(*user).Author(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(deps.Stdout, "Sent %s\n", msg.Key)
			return nil
		},
	}
}

func newUploadCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	var copyURL bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Share a photo",
		Long: `Upload a photo to the shared photo store and post it to the chat.

Large images are downscaled first (see photo_max_dimension). The stored object
is named after the file, so uploading a file with the same name again
replaces the earlier object.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deps.openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			user, err := a.requireUser(ctx)
			if err != nil {
				return err
			}

			spin := newSpinner(deps.Stderr, "Uploading "+args[0])
			spin.start()
			msg, err := a.uploader().Upload(ctx, session.NewContext(*user).Author(), args[0])
			if err != nil {
				spin.stopWithError()
				return err
			}
			spin.stopWithSuccess("Uploaded")

			fmt.Fprintln(deps.Stdout, msg.PhotoURL)
			if copyURL || a.cfg.CopyToClipboard {
				if err := deps.CopyToClipboard(msg.PhotoURL); err != nil {
					a.logger.Warn().Err(err).Msg("could not copy photo URL")
					fmt.Fprintf(deps.Stderr, "Warning: failed to copy to clipboard: %v\n", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&copyURL, "copy", "c", false, "Copy the photo URL to the clipboard")
	return cmd
}
