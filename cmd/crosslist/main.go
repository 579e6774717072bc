package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/daviddao/crosslist/internal/auth"
	"github.com/daviddao/crosslist/internal/config"
	"github.com/daviddao/crosslist/internal/db"
	"github.com/daviddao/crosslist/internal/display"
	"github.com/daviddao/crosslist/internal/logging"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	configPath  string
	jsonOutput  bool
	quietFlag   bool
	verboseFlag bool

	logger    = logging.Discard()
	logCloser io.Closer
	store     *db.DB
)

var rootCmd = &cobra.Command{
	Use:           "crosslist",
	Short:         "crosslist - withdraw sold items from the other marketplaces",
	Long:          "Crosslist watches Gmail for sold notifications, marks the tracking sheet and cancels the item's other listings.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "version", "completion":
			return nil
		}

		dir, err := config.Dir()
		if err != nil {
			return err
		}
		level := "info"
		if cfg, err := config.Load(resolveConfigPath()); err == nil {
			level = cfg.LogLevel
		}
		switch {
		case verboseFlag:
			level = "debug"
		case quietFlag:
			level = "error"
		}

		l, closer, err := logging.Open(os.Stderr, level, filepath.Join(dir, "logs"))
		if err != nil {
			// Logging to files is best effort; keep the console.
			logger = logging.New(level)
			return nil
		}
		logger, logCloser = l, closer
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crosslist version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: <user config dir>/crosslist/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Log debug messages to the console")

	rootCmd.AddCommand(versionCmd)
}

// explain turns well-known errors into a next step for the user.
func explain(err error) string {
	var insufficient *config.InsufficientError
	switch {
	case errors.Is(err, config.ErrNotFound):
		return "no config found — run 'crosslist config new' first"
	case errors.As(err, &insufficient):
		return fmt.Sprintf("%v — run 'crosslist config update'", err)
	case errors.Is(err, auth.ErrNotLoggedIn):
		return "not logged in — run 'crosslist login' first"
	default:
		return err.Error()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "err", err)
		display.ErrorMsg("%s", explain(err))
		os.Exit(1)
	}
}
