package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/friendlychat/internal/auth"
	"github.com/diogo/friendlychat/internal/models"
)

const commandTimeout = 60 * time.Second

type loginOptions struct {
	email       string
	googleToken string
	signUp      bool
	name        string
}

func newLoginCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	lo := &loginOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Long: `Sign in with email and password, or with a Google ID token, and save the
session so later commands and the chat start signed in.

The password is read from the terminal without echo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, deps, opts, lo)
		},
	}

	cmd.Flags().StringVarP(&lo.email, "email", "e", "", "Account email (prompted when empty)")
	cmd.Flags().StringVar(&lo.googleToken, "google-id-token", "", "Sign in with a Google ID token instead of a password")
	cmd.Flags().BoolVar(&lo.signUp, "sign-up", false, "Create a new email account")
	cmd.Flags().StringVar(&lo.name, "name", "", "Display name for a new account")
	cmd.MarkFlagsMutuallyExclusive("google-id-token", "sign-up")
	cmd.MarkFlagsMutuallyExclusive("google-id-token", "email")
	return cmd
}

func runLogin(cmd *cobra.Command, deps *Dependencies, opts *globalOptions, lo *loginOptions) error {
	a, err := deps.openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	var user *auth.User
	if lo.googleToken != "" {
		user, err = a.auth.SignInWithGoogle(ctx, lo.googleToken)
	} else {
		in := bufio.NewReader(deps.Stdin)
		email := strings.TrimSpace(lo.email)
		if email == "" {
			if email, err = prompt(in, deps.Stderr, "Email: "); err != nil {
				return err
			}
		}

		fmt.Fprint(deps.Stderr, "Password: ")
		password, err := deps.ReadPassword()
		fmt.Fprintln(deps.Stderr)
		if err != nil {
			return err
		}

		if lo.signUp {
			user, err = a.auth.SignUp(ctx, email, password, lo.name)
		} else {
			user, err = a.auth.SignInWithPassword(ctx, email, password)
		}
		if err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Signed in as %s via %s\n", describeUser(user), models.ProviderName(user.Provider))
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func describeUser(u *auth.User) string {
	name := u.DisplayName
	if name == "" {
		name = models.Anonymous
	}
	if u.Email != "" {
		return fmt.Sprintf("%s <%s>", name, u.Email)
	}
	return name
}

func newLogoutCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and delete the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deps.openApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.auth.SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(deps.Stdout, "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(deps *Dependencies, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
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
			fmt.Fprintf(deps.Stdout, "User:     %s\n", describeUser(user))
			fmt.Fprintf(deps.Stdout, "UID:      %s\n", user.UID)
			fmt.Fprintf(deps.Stdout, "Provider: %s\n", models.ProviderName(user.Provider))
			return nil
		},
	}
}
