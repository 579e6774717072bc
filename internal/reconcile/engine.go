// Package reconcile turns sold-mail notifications into tracking-sheet updates
// and cancellations of the item's other listings.
//
// A run walks the platforms in registry order. For each platform it reads the
// tracking sheet once, discovers sold item IDs from mail not yet carrying the
// processed label, flags the matching row as sold and cancels every other
// platform's listing on that row. Cancellation failures become per-item
// outcomes; any other error aborts the run.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/daviddao/crosslist/internal/platform"
	"github.com/daviddao/crosslist/internal/sheets"
	"github.com/daviddao/crosslist/internal/types"
	"github.com/google/uuid"
)

// ErrDuplicateLabel means more than one mailbox label carries the processed
// label's name.
var ErrDuplicateLabel = errors.New("duplicate processed label")

// Mailbox is the subset of the Gmail client the engine uses.
type Mailbox interface {
	Search(ctx context.Context, query string) ([]string, error)
	Get(ctx context.Context, messageID string) (*types.Mail, error)
	ListLabels(ctx context.Context) ([]types.Label, error)
	CreateLabel(ctx context.Context, name string) (types.Label, error)
	AddLabels(ctx context.Context, messageID string, labelIDs []string) error
	RemoveLabels(ctx context.Context, messageID string, labelIDs []string) error
}

// Sheet is the subset of the Sheets client the engine uses.
type Sheet interface {
	GetValues(ctx context.Context, spreadsheetID, rng string, dim sheets.Dimension) ([][]string, error)
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]string, dim sheets.Dimension, input sheets.InputOption) error
}

// Canceller withdraws one listing.
type Canceller interface {
	Cancel(ctx context.Context, p *platform.Platform, itemID string) error
}

// Notifier reports cancellation outcomes to an operator.
type Notifier interface {
	NotifySuccess(ctx context.Context, to string, p *platform.Platform, itemID, trackingID string) error
	NotifyFailure(ctx context.Context, to string, p *platform.Platform, itemID, trackingID string, cause error) error
}

// Journal keeps an audit trail of a run. Journal errors are logged, never
// fatal.
type Journal interface {
	RecordMail(runID, platformCode, mailID, itemID string) error
	RecordSale(runID string, sale types.Sale) error
}

// Options configures an Engine.
type Options struct {
	SpreadsheetID string
	// Label is the processed-mail label name.
	Label string
	// MailTo receives outcome notifications. Empty disables them.
	MailTo string
	// Platforms defaults to platform.All().
	Platforms []*platform.Platform
	Journal   Journal
	Log       *slog.Logger
}

// Engine reconciles sold mail against the tracking sheet.
type Engine struct {
	mail      Mailbox
	sheet     Sheet
	canceller Canceller
	notifier  Notifier
	opts      Options
	log       *slog.Logger
	now       func() time.Time

	labelID string
}

// New returns an Engine. notifier may be nil when opts.MailTo is empty.
func New(mail Mailbox, sheet Sheet, canceller Canceller, notifier Notifier, opts Options) *Engine {
	if len(opts.Platforms) == 0 {
		opts.Platforms = platform.All()
	}
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		mail:      mail,
		sheet:     sheet,
		canceller: canceller,
		notifier:  notifier,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// markerID returns the processed label's ID, creating the label on first use.
func (e *Engine) markerID(ctx context.Context) (string, error) {
	if e.labelID != "" {
		return e.labelID, nil
	}

	labels, err := e.mail.ListLabels(ctx)
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	var matches []types.Label
	for _, l := range labels {
		if l.Name == e.opts.Label {
			matches = append(matches, l)
		}
	}

	switch len(matches) {
	case 0:
		created, err := e.mail.CreateLabel(ctx, e.opts.Label)
		if err != nil {
			return "", fmt.Errorf("create label %q: %w", e.opts.Label, err)
		}
		e.log.Info("created processed label", "label", e.opts.Label, "id", created.ID)
		e.labelID = created.ID
	case 1:
		e.labelID = matches[0].ID
	default:
		return "", fmt.Errorf("%w: %d labels named %q", ErrDuplicateLabel, len(matches), e.opts.Label)
	}
	return e.labelID, nil
}

func (e *Engine) soldMailQuery(p *platform.Platform) string {
	return p.SoldMailQuery() + " AND -{label:" + e.opts.Label + "}"
}

// SoldMailIDs yields the IDs of p's sold mails that do not yet carry the
// processed label. Each mail is labelled as soon as the consumer's loop body
// for it completes, before the next ID is produced; a body that breaks or
// returns leaves its mail unlabelled.
//
// Processing is at most once. A mail whose loop body finished is never
// yielded again, even if work in that body failed and was only logged.
func (e *Engine) SoldMailIDs(ctx context.Context, p *platform.Platform) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		labelID, err := e.markerID(ctx)
		if err != nil {
			yield("", err)
			return
		}
		ids, err := e.mail.Search(ctx, e.soldMailQuery(p))
		if err != nil {
			yield("", fmt.Errorf("search %s sold mail: %w", p.Code(), err))
			return
		}

		for _, id := range ids {
			if !yield(id, nil) {
				return
			}
			if err := e.mail.AddLabels(ctx, id, []string{labelID}); err != nil {
				yield("", fmt.Errorf("label mail %s: %w", id, err))
				return
			}
		}
	}
}

// Requeue removes the processed label from the given mails so the next run
// scans them again.
func (e *Engine) Requeue(ctx context.Context, mailIDs []string) error {
	labelID, err := e.markerID(ctx)
	if err != nil {
		return err
	}
	for _, id := range mailIDs {
		if err := e.mail.RemoveLabels(ctx, id, []string{labelID}); err != nil {
			return fmt.Errorf("unlabel mail %s: %w", id, err)
		}
		e.log.Info("requeued mail", "mail", id)
	}
	return nil
}

// discovery is one scanned sold mail. ItemID is empty when the body has no
// recognisable item ID.
type discovery struct {
	MailID string
	ItemID string
}

func (e *Engine) discover(ctx context.Context, p *platform.Platform) iter.Seq2[discovery, error] {
	return func(yield func(discovery, error) bool) {
		for id, err := range e.SoldMailIDs(ctx, p) {
			if err != nil {
				yield(discovery{}, err)
				return
			}
			mail, err := e.mail.Get(ctx, id)
			if err != nil {
				yield(discovery{}, fmt.Errorf("get mail %s: %w", id, err))
				return
			}
			itemID, _ := p.ExtractItemID(mail.Body)
			if !yield(discovery{MailID: id, ItemID: itemID}, nil) {
				return
			}
		}
	}
}

// SoldItemIDs yields the item ID found in each of p's new sold mails. Mails
// without a match are skipped silently.
func (e *Engine) SoldItemIDs(ctx context.Context, p *platform.Platform) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for d, err := range e.discover(ctx, p) {
			if err != nil {
				yield("", err)
				return
			}
			if d.ItemID == "" {
				continue
			}
			if !yield(d.ItemID, nil) {
				return
			}
		}
	}
}

// Run reconciles every platform once.
func (e *Engine) Run(ctx context.Context) (*types.RunSummary, error) {
	sum := &types.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
		Sales:     []types.Sale{},
	}
	log := e.log.With("run", sum.RunID)

	for _, p := range e.opts.Platforms {
		if err := e.reconcile(ctx, p, sum, log.With("platform", p.Code())); err != nil {
			return sum, fmt.Errorf("reconcile %s: %w", p.Code(), err)
		}
	}
	log.Info("run finished",
		"scanned", sum.Scanned,
		"sales", len(sum.Sales),
		"cancelled", sum.Cancelled,
		"failed", sum.Failed,
	)
	return sum, nil
}

func (e *Engine) reconcile(ctx context.Context, p *platform.Platform, sum *types.RunSummary, log *slog.Logger) error {
	values, err := e.sheet.GetValues(ctx, e.opts.SpreadsheetID, sheets.DataRange(), sheets.Rows)
	if err != nil {
		return err
	}
	rows := sheets.ParseRows(values)
	index := sheets.IndexByItemID(rows, p)
	log.Debug("loaded tracking sheet", "rows", len(rows), "listed", len(index))

	for d, err := range e.discover(ctx, p) {
		if err != nil {
			return err
		}
		sum.Scanned++
		e.journal(log, func(j Journal) error { return j.RecordMail(sum.RunID, p.Code(), d.MailID, d.ItemID) })

		if d.ItemID == "" {
			log.Debug("no item ID in sold mail", "mail", d.MailID)
			continue
		}
		i, ok := index[d.ItemID]
		if !ok {
			log.Info("sold item is not tracked", "item", d.ItemID)
			continue
		}

		sale, err := e.handleSale(ctx, p, rows[i], d.ItemID, sum.RunID, log)
		if err != nil {
			return err
		}
		sum.Sales = append(sum.Sales, sale)
		for _, o := range sale.Outcomes {
			if o.Succeeded {
				sum.Cancelled++
			} else {
				sum.Failed++
			}
		}
	}
	return nil
}

func (e *Engine) handleSale(ctx context.Context, p *platform.Platform, row types.TrackingRow, itemID, runID string, log *slog.Logger) (types.Sale, error) {
	sale := types.Sale{Platform: p.Code(), ItemID: itemID, TrackingID: row.TrackingID}
	log = log.With("item", itemID, "tracking_id", row.TrackingID)

	err := e.sheet.UpdateValues(ctx, e.opts.SpreadsheetID, sheets.SoldCell(row.Index),
		[][]string{{"TRUE"}}, sheets.Rows, sheets.UserEntered)
	if err != nil {
		return sale, err
	}
	log.Info("marked sold")
	e.journal(log, func(j Journal) error { return j.RecordSale(runID, sale) })

	for _, q := range platform.Others(p) {
		other := row.ItemID(q.Code())
		if other == "" {
			continue
		}
		outcome, err := e.cancel(ctx, q, other, row.TrackingID, log)
		if err != nil {
			return sale, err
		}
		sale.Outcomes = append(sale.Outcomes, outcome)
	}
	return sale, nil
}

// cancel withdraws one listing. Only cancellation errors are folded into the
// outcome; anything else is returned.
func (e *Engine) cancel(ctx context.Context, q *platform.Platform, itemID, trackingID string, log *slog.Logger) (types.Outcome, error) {
	outcome := types.Outcome{Platform: q.Code(), ItemID: itemID, TrackingID: trackingID}
	log = log.With("target", q.Code(), "target_item", itemID)

	err := e.canceller.Cancel(ctx, q, itemID)
	var cerr *platform.CancelError
	switch {
	case err == nil:
		outcome.Succeeded = true
		log.Info("cancelled listing")
		if e.opts.MailTo != "" {
			if err := e.notifier.NotifySuccess(ctx, e.opts.MailTo, q, itemID, trackingID); err != nil {
				return outcome, err
			}
		}
	case errors.As(err, &cerr):
		outcome.Reason = cerr.Error()
		log.Error("cancel failed", "err", cerr)
		if e.opts.MailTo != "" {
			if err := e.notifier.NotifyFailure(ctx, e.opts.MailTo, q, itemID, trackingID, cerr); err != nil {
				return outcome, err
			}
		}
	default:
		return outcome, err
	}
	return outcome, nil
}

func (e *Engine) journal(log *slog.Logger, record func(Journal) error) {
	if e.opts.Journal == nil {
		return
	}
	if err := record(e.opts.Journal); err != nil {
		log.Warn("journal write failed", "err", err)
	}
}
