package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/daviddao/crosslist/internal/config"
	"github.com/daviddao/crosslist/internal/display"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configSpreadsheetID string
	configClientID      string
	configClientSecret  string
	configForce         bool

	configField string
	configValue string
)

// configCmd is the parent command for config operations.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, show and update the crosslist config",
}

var configNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new config file",
	Long: `Create a config file with defaults.

Values not given as flags are asked for interactively. The spreadsheet ID is
the long token in the sheet's URL: docs.google.com/spreadsheets/d/<ID>/edit.`,
	Example: `  crosslist config new
  crosslist config new --spreadsheet-id 1AbC... --client-id xxx.apps.googleusercontent.com --client-secret yyy`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveConfigPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		cfg := config.New()
		cfg.SpreadsheetID = configSpreadsheetID
		cfg.ClientID = configClientID
		cfg.ClientSecret = configClientSecret

		in := bufio.NewReader(cmd.InOrStdin())
		for _, f := range []struct {
			prompt string
			dst    *string
		}{
			{"Spreadsheet ID", &cfg.SpreadsheetID},
			{"OAuth client ID", &cfg.ClientID},
			{"OAuth client secret", &cfg.ClientSecret},
		} {
			if *f.dst != "" {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ", f.prompt)
			line, err := in.ReadString('\n')
			if err != nil && line == "" {
				break
			}
			*f.dst = strings.TrimSpace(line)
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Wrote %s", path)
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv(resolveConfigPath())
		if err != nil {
			return err
		}
		shown := *cfg
		if shown.ClientSecret != "" {
			shown.ClientSecret = "********"
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(shown)
		}

		display.SubHeader(resolveConfigPath())
		out, err := yaml.Marshal(&shown)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var configUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change one config field",
	Example: `  crosslist config update -f spreadsheet_id -v 1AbC...
  crosslist config update -f processed_label -v sold-scanned
  crosslist config update -f chrome_args -v "--lang=ja --window-size=1280,800"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveConfigPath()
		cfg, err := config.Load(path)
		if errors.Is(err, config.ErrNotFound) {
			cfg = config.New()
		} else if err != nil {
			return err
		}

		if err := cfg.Set(configField, configValue); err != nil {
			return err
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Set %s", configField)
		}
		return nil
	},
}

func init() {
	configNewCmd.Flags().StringVar(&configSpreadsheetID, "spreadsheet-id", "", "Tracking spreadsheet ID")
	configNewCmd.Flags().StringVar(&configClientID, "client-id", "", "OAuth client ID")
	configNewCmd.Flags().StringVar(&configClientSecret, "client-secret", "", "OAuth client secret")
	configNewCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config")

	configUpdateCmd.Flags().StringVarP(&configField, "field", "f", "", "Field name ("+strings.Join(config.Fields(), ", ")+")")
	configUpdateCmd.Flags().StringVarP(&configValue, "value", "v", "", "New value")
	configUpdateCmd.MarkFlagRequired("field")
	configUpdateCmd.MarkFlagRequired("value")

	configCmd.AddCommand(configNewCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configUpdateCmd)
	rootCmd.AddCommand(configCmd)
}
