package commands

import (
	"bufio"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/friendlychat/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Long: `Show or change settings stored in config.json.

api_key and database_url are required. storage_bucket is needed to share photos.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.configDir != "" {
				config.SetConfigDir(opts.configDir)
			}
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the current settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigShow(deps)
			},
		},
		&cobra.Command{
			Use:       "set <key> <value>",
			Short:     "Change a setting",
			Args:      cobra.ExactArgs(2),
			ValidArgs: config.SettableKeys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSet(deps, args[0], args[1])
			},
		},
		newConfigInitCmd(deps),
	)
	return cmd
}

func runConfigShow(deps *Dependencies) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	path, _ := config.GetConfigPath()

	w := tabwriter.NewWriter(deps.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "# %s\n", path)
	for _, key := range config.SettableKeys() {
		value, _ := cfg.Get(key)
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(w, "\n%v\n", err)
	}
	return w.Flush()
}

func runConfigSet(deps *Dependencies, key, value string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := config.SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "%s = %s\n", key, value)
	return nil
}

func newConfigInitCmd(deps *Dependencies) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config.json, asking for the project settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			in := bufio.NewReader(deps.Stdin)
			for _, key := range []string{"api_key", "database_url", "storage_bucket"} {
				value, err := prompt(in, deps.Stderr, key+": ")
				if err != nil {
					return err
				}
				if value == "" {
					continue
				}
				if err := cfg.Set(key, value); err != nil {
					return err
				}
			}
			if err := config.SaveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(deps.Stdout, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config.json")
	return cmd
}
