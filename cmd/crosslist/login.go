package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/daviddao/crosslist/internal/auth"
	"github.com/daviddao/crosslist/internal/config"
	"github.com/daviddao/crosslist/internal/display"
	"github.com/spf13/cobra"
)

var (
	loginCredentials   string
	loginNoLocalServer bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize crosslist to use Gmail and Google Sheets",
	Long: `Run Google's consent flow and store the resulting credentials.

The OAuth client ID and secret come from the config (client_id,
client_secret) or CROSSLIST_CLIENT_ID / CROSSLIST_CLIENT_SECRET.
By default the redirect is caught on a loopback port; use
--no-local-server on a machine without a browser and paste the code.`,
	Example: `  crosslist login
  crosslist login --no-local-server`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv(resolveConfigPath())
		if err != nil {
			return err
		}
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return &config.InsufficientError{Missing: []string{"client_id", "client_secret"}}
		}

		path, err := resolveCredentials(loginCredentials)
		if err != nil {
			return err
		}
		err = auth.Login(context.Background(), auth.OAuthConfig(cfg.ClientID, cfg.ClientSecret), path, auth.LoginOptions{
			NoLocalServer: loginNoLocalServer,
			Out:           cmd.OutOrStdout(),
			In:            cmd.InOrStdin(),
		})
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		logger.Info("stored credentials", "path", path)
		if !quietFlag {
			display.SuccessMsg("Logged in. Credentials saved to %s", path)
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete stored Google credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveCredentials(loginCredentials)
		if err != nil {
			return err
		}
		err = auth.Logout(path)
		if errors.Is(err, auth.ErrNotLoggedIn) {
			if !quietFlag {
				fmt.Fprintln(cmd.OutOrStdout(), "Already logged out.")
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		if !quietFlag {
			display.SuccessMsg("Logged out")
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, logoutCmd} {
		c.Flags().StringVar(&loginCredentials, "credentials", "", "Credentials file (default: <app dir>/credentials.json)")
	}
	loginCmd.Flags().BoolVar(&loginNoLocalServer, "no-local-server", false, "Paste the authorization code instead of using a loopback server")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
