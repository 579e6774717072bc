package main

import (
	"context"
	"fmt"

	"github.com/daviddao/crosslist/internal/display"
	"github.com/daviddao/crosslist/internal/sheets"
	"github.com/spf13/cobra"
)

var (
	sheetClear       bool
	sheetCredentials string

	sheetTrackingID string
	sheetPlatform   platformValue
	sheetItemID     string
)

// sheetCmd is the parent command for tracking sheet operations.
var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Set up, open and edit the tracking sheet",
}

var sheetInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Format the tracking sheet and seed tracking IDs",
	Long: fmt.Sprintf(`Format the first sheet of the configured spreadsheet as a tracking sheet
(headers, colours, sold checkbox column) and write tracking IDs c00001 to
c%05d into column A.

--clear deletes the tracked columns first.`, sheets.SeedCount),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, sc, err := connect(ctx, sheetCredentials)
		if err != nil {
			return err
		}

		if err := sc.BatchUpdate(ctx, cfg.SpreadsheetID, sheets.InitRequests(sheetClear)); err != nil {
			return err
		}
		err = sc.UpdateValues(ctx, cfg.SpreadsheetID, sheets.SeedRange(), sheets.SeedTrackingIDs(), sheets.Columns, sheets.Raw)
		if err != nil {
			return err
		}
		logger.Info("initialized tracking sheet", "spreadsheet", cfg.SpreadsheetID, "clear", sheetClear)
		if !quietFlag {
			display.SuccessMsg("Initialized %s", cfg.SpreadsheetURL())
		}
		return nil
	},
}

var sheetOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the tracking sheet in the crosslist browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		chrome, err := newChrome(cfg, false, nil)
		if err != nil {
			return err
		}
		return chrome.Browse(context.Background(), cfg.SpreadsheetURL())
	},
}

var sheetUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Record a platform item ID on a tracking row",
	Example: `  crosslist sheet update -c c00012 -p mercari -v m81234567890
  crosslist sheet update -c c00012 -p yahoo_auction -v x1234567`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, sc, err := connect(ctx, sheetCredentials)
		if err != nil {
			return err
		}

		cols, err := sc.GetValues(ctx, cfg.SpreadsheetID, sheets.TrackingIDRange(), sheets.Columns)
		if err != nil {
			return err
		}
		var ids []string
		if len(cols) > 0 {
			ids = cols[0]
		}
		idx, ok := sheets.FindTrackingID(ids, sheetTrackingID)
		if !ok {
			return fmt.Errorf("tracking ID %s not found in the sheet", sheetTrackingID)
		}

		cell := sheets.Cell(sheetPlatform.p.Column(), idx)
		if err := sc.UpdateValues(ctx, cfg.SpreadsheetID, cell, [][]string{{sheetItemID}}, sheets.Rows, sheets.Raw); err != nil {
			return err
		}
		logger.Info("updated tracking row", "tracking_id", sheetTrackingID, "platform", sheetPlatform.p.Code(), "item", sheetItemID, "cell", cell)
		if !quietFlag {
			display.SuccessMsg("%s %s = %s", sheetTrackingID, sheetPlatform.p.Name(), sheetItemID)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{sheetInitCmd, sheetUpdateCmd} {
		c.Flags().StringVar(&sheetCredentials, "credentials", "", "Credentials file (default: <app dir>/credentials.json)")
	}
	sheetInitCmd.Flags().BoolVar(&sheetClear, "clear", false, "Delete the tracked columns before formatting")

	sheetUpdateCmd.Flags().StringVarP(&sheetTrackingID, "tracking-id", "c", "", "Tracking ID of the row (e.g. c00012)")
	sheetUpdateCmd.Flags().VarP(&sheetPlatform, "platform", "p", "Platform code")
	sheetUpdateCmd.Flags().StringVarP(&sheetItemID, "value", "v", "", "Item ID on that platform")
	sheetUpdateCmd.MarkFlagRequired("tracking-id")
	sheetUpdateCmd.MarkFlagRequired("platform")
	sheetUpdateCmd.MarkFlagRequired("value")

	sheetCmd.AddCommand(sheetInitCmd)
	sheetCmd.AddCommand(sheetOpenCmd)
	sheetCmd.AddCommand(sheetUpdateCmd)
	rootCmd.AddCommand(sheetCmd)
}
