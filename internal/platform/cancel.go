package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daviddao/crosslist/internal/browser"
)

// DefaultSettle is how long a session stays open after the click so the
// marketplace page can react.
const DefaultSettle = time.Second

// Canceller withdraws listings by driving a browser through
// Navigate, Locate, Activate and Settle. It holds no per-call state.
type Canceller struct {
	driver browser.Driver
	settle time.Duration
	log    *slog.Logger
	sleep  func(context.Context, time.Duration)
}

// NewCanceller returns a Canceller using driver for every call.
func NewCanceller(driver browser.Driver, settle time.Duration, log *slog.Logger) *Canceller {
	if log == nil {
		log = slog.Default()
	}
	return &Canceller{driver: driver, settle: settle, log: log, sleep: sleepCtx}
}

// Cancel withdraws one listing of itemID on p.
//
// A *CancelError is returned when the page, the control or the click fails.
// Any other error (the browser could not be started) is not a cancellation
// outcome and should abort the caller.
func (c *Canceller) Cancel(ctx context.Context, p *Platform, itemID string) error {
	session, err := c.driver.Open(ctx)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.log.Debug("close browser session", "err", err)
		}
	}()

	fail := func(kind CancelErrorKind, detail string, err error) error {
		return &CancelError{Kind: kind, Platform: p.Name(), ItemID: itemID, Detail: detail, Err: err}
	}

	// Navigate. Landing anywhere else means a login wall or an error page.
	url := p.CancelURL(itemID)
	if err := session.Navigate(url); err != nil {
		return fail(PageUnreachable, url, err)
	}
	current, err := session.CurrentURL()
	if err != nil {
		return fail(PageUnreachable, url, err)
	}
	if current != url {
		return fail(PageUnreachable, url,
			fmt.Errorf("landed on %s; make sure the browser profile is logged in to %s", current, p.Name()))
	}
	c.log.Debug("accessed cancel page", "platform", p.Code(), "url", url)

	// Locate.
	loc := p.Control()
	elems, err := session.FindAll(loc.XPath)
	if err != nil {
		return fail(ControlNotFound, loc.XPath, err)
	}
	if len(elems) != 1 {
		return fail(ControlNotFound, loc.XPath, fmt.Errorf("%d matches", len(elems)))
	}
	control := elems[0]
	if control.Tag() != loc.Tag {
		return fail(ControlNotFound, loc.XPath, fmt.Errorf("found <%s>, want <%s>", control.Tag(), loc.Tag))
	}
	c.log.Debug("found cancel control", "platform", p.Code(), "xpath", loc.XPath)

	// Activate.
	if err := control.Click(); err != nil {
		return fail(ActivationFailed, loc.XPath, err)
	}
	c.log.Debug("clicked cancel control", "platform", p.Code(), "item_id", itemID)

	// Settle.
	c.sleep(ctx, c.settle)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
