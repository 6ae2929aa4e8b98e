package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geotagger/client/internal/backend"
	"github.com/geotagger/client/internal/presenter"
)

func newLoginCmd(o *overrides, register bool) *cobra.Command {
	var email, password string

	use, short, fallback := "login", "Sign in and cache the session in the profile", "login failed"
	if register {
		use, short, fallback = "register", "Create an account and sign in with it", "registration failed"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				password = os.Getenv("GEOTAGGER_PASSWORD")
			}
			if password == "" {
				p, err := readLine(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = p
			}

			signIn := a.backend.Login
			if register {
				signIn = a.backend.Register
			}
			rec, err := signIn(cmd.Context(), email, password)
			if err != nil {
				return errors.New(backend.Message(err, fallback))
			}
			if err := a.cache.Write(cmd.Context(), rec); err != nil {
				return fmt.Errorf("caching session: %w", err)
			}

			a.badge.Mount(cmd.Context())
			printBadge(cmd, a.badge.View())
			return nil
		}),
	}

	fs := cmd.Flags()
	fs.StringVarP(&email, "email", "e", "", "account email")
	fs.StringVarP(&password, "password", "p", "", "account password (env: GEOTAGGER_PASSWORD, prompted when empty)")
	return cmd
}

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newResetPasswordCmd(o *overrides) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for an account",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				p, err := readLine(cmd, "New password: ")
				if err != nil {
					return err
				}
				password = p
			}
			if err := a.backend.ResetPassword(cmd.Context(), email, password); err != nil {
				return errors.New(backend.Message(err, "password reset failed"))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
			return nil
		}),
	}

	fs := cmd.Flags()
	fs.StringVarP(&email, "email", "e", "", "account email")
	fs.StringVarP(&password, "password", "p", "", "new password (prompted when empty)")
	return cmd
}

func newLogoutCmd(o *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the cached session",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.backend.Logout(cmd.Context()); err != nil {
				a.logger.Warn("backend logout failed", "error", err)
			}
			if err := a.cache.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		}),
	}
}

func newWhoamiCmd(o *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and their point balance",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			a.badge.Mount(cmd.Context())
			printBadge(cmd, a.badge.View())
			return nil
		}),
	}
}

func printBadge(cmd *cobra.Command, v presenter.BadgeView) {
	if !v.SignedIn {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s (not signed in)\n", v.Initials, v.Username)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s  %d points\n", v.Initials, v.Username, v.Points)
}
