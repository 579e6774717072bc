// Package types defines core data structures for crosslist.
package types

import "time"

// Mail is a fetched mailbox message with its body decoded to text.
type Mail struct {
	ID       string            `json:"id"`
	ThreadID string            `json:"thread_id"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     string            `json:"body"`
	Labels   []string          `json:"labels,omitempty"`
}

// Label is a mailbox label.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TrackingRow is one row of the tracking spreadsheet.
type TrackingRow struct {
	// Index is the zero-based position among data rows (sheet row Index+2).
	Index      int               `json:"index"`
	TrackingID string            `json:"tracking_id"`
	ItemIDs    map[string]string `json:"item_ids"` // platform code -> item ID
	Sold       bool              `json:"sold"`
}

// ItemID returns the row's item ID for a platform code, or "".
func (r *TrackingRow) ItemID(code string) string {
	if r == nil || r.ItemIDs == nil {
		return ""
	}
	return r.ItemIDs[code]
}

// Outcome is the result of one cancellation attempt.
type Outcome struct {
	Platform   string `json:"platform"`
	ItemID     string `json:"item_id"`
	TrackingID string `json:"tracking_id"`
	Succeeded  bool   `json:"succeeded"`
	Reason     string `json:"reason,omitempty"`
}

// Sale is a sold item correlated to a tracking row.
type Sale struct {
	Platform   string    `json:"platform"`
	ItemID     string    `json:"item_id"`
	TrackingID string    `json:"tracking_id"`
	Outcomes   []Outcome `json:"outcomes,omitempty"`
}

// RunSummary holds the result of one mail-driven reconciliation run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Scanned   int       `json:"scanned"`
	Sales     []Sale    `json:"sales"`
	Cancelled int       `json:"cancelled"`
	Failed    int       `json:"failed"`
}

// JournalEntry is one line of the local audit journal.
type JournalEntry struct {
	ID         int64  `json:"id"`
	RunID      string `json:"run_id"`
	Kind       string `json:"kind"`
	Platform   string `json:"platform"`
	MailID     string `json:"mail_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	TrackingID string `json:"tracking_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// Journal entry kinds.
const (
	KindMailScanned = "mail_scanned"
	KindSold        = "sold"
)
