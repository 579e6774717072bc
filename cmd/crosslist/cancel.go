package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/daviddao/crosslist/internal/display"
	"github.com/daviddao/crosslist/internal/notify"
	"github.com/daviddao/crosslist/internal/platform"
	"github.com/daviddao/crosslist/internal/reconcile"
	"github.com/daviddao/crosslist/internal/types"
	"github.com/spf13/cobra"
)

var (
	cancelMailTo      string
	cancelCredentials string
	cancelHeadless    bool
	cancelChromeArgs  []string
	cancelNoJournal   bool
)

// cancelCmd is the parent command for listing cancellation.
var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel listings directly or from sold mail",
}

// newPlatformCancelCmd builds `crosslist cancel <code> ITEM_ID...`.
func newPlatformCancelCmd(p *platform.Platform) *cobra.Command {
	return &cobra.Command{
		Use:   p.Code() + " ITEM_ID...",
		Short: fmt.Sprintf("Cancel %s listings by item ID", p.Name()),
		Long: fmt.Sprintf(`Cancel one or more %s listings in the crosslist browser.

Each item prints "<item ID>: succeeded" or "<item ID>: failed". A failed
item does not stop the others.`, p.Name()),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			chrome, err := newChrome(cfg, cancelHeadless, cancelChromeArgs)
			if err != nil {
				return err
			}
			canceller := platform.NewCanceller(chrome, cfg.Settle(), logger)

			ctx := context.Background()
			var outcomes []types.Outcome
			for _, id := range args {
				o := types.Outcome{Platform: p.Code(), ItemID: id}
				err := canceller.Cancel(ctx, p, id)
				var cerr *platform.CancelError
				switch {
				case err == nil:
					o.Succeeded = true
					logger.Info("cancelled listing", "platform", p.Code(), "item", id)
				case errors.As(err, &cerr):
					o.Reason = cerr.Error()
					logger.Error("cancel failed", "platform", p.Code(), "item", id, "err", cerr)
				default:
					return err
				}
				outcomes = append(outcomes, o)
				if !jsonOutput {
					display.Outcome(id, o.Succeeded)
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(outcomes)
			}
			return nil
		},
	}
}

var cancelMailCmd = &cobra.Command{
	Use:   "mail",
	Short: "Cancel the other listings of items reported sold by mail",
	Long: `Scan Gmail for sold notifications not yet labelled as processed, mark the
matching tracking rows sold and cancel the item's listings on the other
platforms.

Each scanned mail is labelled once it has been handled, so it is never
scanned twice. A failed cancellation is logged (and mailed to --mail-to)
but is not retried by later runs; cancel it with
'crosslist cancel <platform> ITEM_ID' or rescan the mail after
'crosslist cancel requeue MAIL_ID'.`,
	Example: `  crosslist cancel mail
  crosslist cancel mail --mail-to ops@example.com
  crosslist cancel mail --headless --chrome-arg=--window-size=1280,800`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gc, sc, err := connect(ctx, cancelCredentials)
		if err != nil {
			return err
		}
		chrome, err := newChrome(cfg, cancelHeadless, cancelChromeArgs)
		if err != nil {
			return err
		}
		templates, err := appPath("templates")
		if err != nil {
			return err
		}

		opts := reconcile.Options{
			SpreadsheetID: cfg.SpreadsheetID,
			Label:         cfg.ProcessedLabel,
			MailTo:        cancelMailTo,
			Log:           logger,
		}
		if !cancelNoJournal {
			j, err := openJournal()
			if err != nil {
				return err
			}
			opts.Journal = j
		}

		engine := reconcile.New(gc, sc,
			platform.NewCanceller(chrome, cfg.Settle(), logger),
			notify.New(gc, templates),
			opts,
		)
		summary, err := engine.Run(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		if !quietFlag {
			display.RunSummary(summary)
		}
		return nil
	},
}

var cancelRequeueCmd = &cobra.Command{
	Use:   "requeue MAIL_ID...",
	Short: "Make sold mail eligible for the next 'cancel mail' run",
	Long: `Remove the processed label from the given Gmail messages, so the next
'crosslist cancel mail' scans them again.

Mail IDs of earlier runs are listed by 'crosslist history --json'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gc, sc, err := connect(ctx, cancelCredentials)
		if err != nil {
			return err
		}
		engine := reconcile.New(gc, sc, nil, nil, reconcile.Options{
			SpreadsheetID: cfg.SpreadsheetID,
			Label:         cfg.ProcessedLabel,
			Log:           logger,
		})
		if err := engine.Requeue(ctx, args); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Requeued %d mail(s)", len(args))
		}
		return nil
	},
}

func init() {
	for _, p := range platform.All() {
		cancelCmd.AddCommand(newPlatformCancelCmd(p))
	}
	cancelCmd.AddCommand(cancelMailCmd)
	cancelCmd.AddCommand(cancelRequeueCmd)

	cancelCmd.PersistentFlags().BoolVar(&cancelHeadless, "headless", false, "Run Chrome without a window")
	cancelCmd.PersistentFlags().StringArrayVar(&cancelChromeArgs, "chrome-arg", nil, "Extra Chrome switch, e.g. --chrome-arg=--lang=ja (repeatable)")

	cancelMailCmd.Flags().StringVar(&cancelMailTo, "mail-to", "", "Send an outcome mail per cancellation to this address")
	for _, c := range []*cobra.Command{cancelMailCmd, cancelRequeueCmd} {
		c.Flags().StringVar(&cancelCredentials, "credentials", "", "Credentials file (default: <app dir>/credentials.json)")
	}
	cancelMailCmd.Flags().BoolVar(&cancelNoJournal, "no-journal", false, "Do not record the run in the local journal")

	rootCmd.AddCommand(cancelCmd)
}
