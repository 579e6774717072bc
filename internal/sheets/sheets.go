// Package sheets is the tracking spreadsheet gateway for crosslist.
package sheets

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	sh "google.golang.org/api/sheets/v4"
)

// Dimension is the major dimension of a value range.
type Dimension string

const (
	Rows    Dimension = "ROWS"
	Columns Dimension = "COLUMNS"
)

// InputOption tells Sheets how to interpret written values.
type InputOption string

const (
	Raw         InputOption = "RAW"
	UserEntered InputOption = "USER_ENTERED"
)

// Client reads and writes one Google account's spreadsheets.
type Client struct {
	svc     *sh.Service
	limiter *rate.Limiter
}

// New returns a Client backed by svc.
func New(svc *sh.Service) *Client {
	return &Client{svc: svc, limiter: rate.NewLimiter(rate.Limit(5), 5)}
}

// GetValues returns a range as strings. Missing trailing cells are not
// padded; callers must bounds-check rows.
func (c *Client) GetValues(ctx context.Context, spreadsheetID, rng string, dim Dimension) ([][]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		MajorDimension(string(dim)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get values %s: %w", rng, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = fmt.Sprint(v)
		}
	}
	return rows, nil
}

// UpdateValues writes values into a range.
func (c *Client) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]string, dim Dimension, input InputOption) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	vr := &sh.ValueRange{
		Range:          rng,
		MajorDimension: string(dim),
		Values:         toInterfaces(values),
	}
	_, err := c.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption(string(input)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update values %s: %w", rng, err)
	}
	return nil
}

// BatchUpdate applies structural and formatting requests.
func (c *Client) BatchUpdate(ctx context.Context, spreadsheetID string, requests []*sh.Request) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, &sh.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("batch update: %w", err)
	}
	return nil
}

func toInterfaces(values [][]string) [][]interface{} {
	out := make([][]interface{}, len(values))
	for i, row := range values {
		out[i] = make([]interface{}, len(row))
		for j, v := range row {
			out[i][j] = v
		}
	}
	return out
}
