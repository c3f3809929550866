// Package commands provides CLI commands for friendlychat.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diogo/friendlychat/internal/tui"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configDir string
	verbose   bool
}

// NewRootCmd builds the command tree. Without a sub-command it starts the chat.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps == nil {
		deps = NewDependencies()
	}
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "friendlychat",
		Short: "Terminal client for a realtime group chat",
		Long: `friendlychat is a terminal client for a realtime group chat backed by a
hosted identity platform, database and photo storage.

Examples:
  friendlychat                          Start the chat (signs in first if needed)
  friendlychat login                    Sign in with email and password
  friendlychat send "hello everyone"    Send a single message
  friendlychat upload ~/cat.jpg         Share a photo
  friendlychat tail --follow            Print messages as they arrive
  friendlychat config set api_key KEY   Configure the project`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "friendlychat %s (built %s)\n", Version, BuildTime)
				return nil
			}
			return runChat(cmd, deps, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Configuration directory (default ~/.friendlychat)")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	cmd.AddCommand(
		newChatCmd(deps, opts),
		newLoginCmd(deps, opts),
		newLogoutCmd(deps, opts),
		newWhoamiCmd(deps, opts),
		newSendCmd(deps, opts),
		newUploadCmd(deps, opts),
		newTailCmd(deps, opts),
		newDownloadCmd(deps, opts),
		newConfigCmd(deps, opts),
	)
	return cmd
}

// rootCmd represents the base command
var rootCmd = NewRootCmd(nil)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, tui.FormatError(err))
		os.Exit(1)
	}
}
