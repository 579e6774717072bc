package main

import (
	"context"

	"github.com/daviddao/crosslist/internal/config"
	"github.com/spf13/cobra"
)

const defaultBrowserURL = "https://jp.mercari.com/mypage/listings"

var browserCmd = &cobra.Command{
	Use:   "browser [URL]",
	Short: "Open Chrome on the crosslist profile",
	Long: `Open a visible Chrome window on the profile used for cancellations and wait
until it is closed.

Log in to every marketplace here once; cancellations reuse the session.
Without a URL the Mercari listings page is opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv(resolveConfigPath())
		if err != nil {
			cfg = config.New()
		}
		chrome, err := newChrome(cfg, false, nil)
		if err != nil {
			return err
		}

		url := defaultBrowserURL
		if len(args) == 1 {
			url = args[0]
		}
		logger.Info("opening browser", "url", url)
		return chrome.Browse(context.Background(), url)
	},
}

func init() {
	rootCmd.AddCommand(browserCmd)
}
