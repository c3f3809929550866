package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/friendlychat/internal/api"
	"github.com/diogo/friendlychat/internal/config"
)

func newDownloadCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	do := api.DownloadOptions{}
	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Save a shared photo to disk",
		Long: `Download the photo behind a photo message URL.

Files go to download_dir (default ~/.friendlychat/photos) unless -o is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deps.openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if do.Directory == "" {
				if do.Directory, err = config.GetDownloadDir(a.cfg); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			path, err := a.client.DownloadPhoto(ctx, args[0], do)
			if err != nil {
				return err
			}
			fmt.Fprintln(deps.Stdout, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&do.Directory, "output", "o", "", "Destination directory")
	cmd.Flags().StringVar(&do.Filename, "name", "", "File name (derived from the URL by default)")
	return cmd
}
