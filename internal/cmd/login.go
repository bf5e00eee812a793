package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/puttnotify/internal/log"
)

func loginCmd() *cobra.Command {
	var email string

	command := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Proof of Putt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, errEnv := newEnv(true)
			if errEnv != nil {
				return errEnv
			}
			defer e.Close()

			var password string

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Email").
						Value(&email).
						Validate(func(s string) error {
							if !strings.Contains(s, "@") {
								return errors.New("enter the email you sign in with")
							}
							return nil
						}),
					huh.NewInput().
						Title("Password").
						EchoMode(huh.EchoModePassword).
						Value(&password).
						Validate(func(s string) error {
							if s == "" {
								return errors.New("password is required")
							}
							return nil
						}),
				),
			)

			ctx := cmd.Context()
			if err := form.RunWithContext(ctx); err != nil {
				return err
			}

			result, errLogin := e.client.Login(ctx, strings.TrimSpace(email), password)
			if errLogin != nil {
				return errLogin
			}

			if err := e.session.Set(result.Token, result.Player); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}

			cred, _ := e.session.Credential()
			if cred.Profile == nil {
				profile, errProfile := e.client.PlayerData(ctx, cred.PlayerID)
				if errProfile != nil {
					slog.Warn("Failed to load player data", log.ErrAttr(errProfile))
				} else if errUpdate := e.session.UpdateProfile(*profile); errUpdate != nil {
					slog.Warn("Failed to save player data", log.ErrAttr(errUpdate))
				}
				cred, _ = e.session.Credential()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", cred.DisplayName())

			return nil
		},
	}

	command.Flags().StringVar(&email, "email", "", "prefill the email field")

	return command
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the cached inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, errEnv := newEnv(true)
			if errEnv != nil {
				return errEnv
			}
			defer e.Close()

			playerID, signedIn := e.session.PlayerID()

			if err := e.session.Clear(); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}

			if signedIn {
				if err := e.inbox.Forget(cmd.Context(), playerID); err != nil {
					slog.Warn("Failed to clear cached inbox", log.ErrAttr(err))
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")

			return nil
		},
	}
}
