// Package notify mails the operator the outcome of each cancellation.
package notify

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/daviddao/crosslist/internal/platform"
	"github.com/osteele/liquid"
)

//go:embed templates/*.html
var builtin embed.FS

const (
	successTemplate = "notify_success.html"
	failureTemplate = "notify_fail.html"

	successSubject = "【crosslist】出品取り消し"
	failureSubject = "【crosslist】出品取り消し(エラー)"
)

// Sender delivers an HTML mail.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Notifier renders outcome templates and sends them through a Sender.
type Notifier struct {
	sender      Sender
	engine      *liquid.Engine
	overrideDir string
}

// New returns a Notifier. Templates found in overrideDir replace the
// built-in ones of the same name; overrideDir may be empty.
func New(sender Sender, overrideDir string) *Notifier {
	return &Notifier{
		sender:      sender,
		engine:      liquid.NewEngine(),
		overrideDir: overrideDir,
	}
}

// NotifySuccess reports a withdrawn listing to the operator at to.
func (n *Notifier) NotifySuccess(ctx context.Context, to string, p *platform.Platform, itemID, trackingID string) error {
	return n.send(ctx, to, successSubject, successTemplate, p, itemID, trackingID, "")
}

// NotifyFailure reports a listing that must be withdrawn by hand.
func (n *Notifier) NotifyFailure(ctx context.Context, to string, p *platform.Platform, itemID, trackingID string, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return n.send(ctx, to, failureSubject, failureTemplate, p, itemID, trackingID, reason)
}

func (n *Notifier) send(ctx context.Context, to, subject, name string, p *platform.Platform, itemID, trackingID, reason string) error {
	body, err := n.Render(name, liquid.Bindings{
		"user":          to,
		"tracking_id":   trackingID,
		"platform_name": p.Name(),
		"item_id":       itemID,
		"listing_url":   p.ListingURL(itemID),
		"reason":        reason,
	})
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("notify %s: %w", to, err)
	}
	return nil
}

// Render renders the named template with bindings.
func (n *Notifier) Render(name string, bindings map[string]any) (string, error) {
	src, err := n.load(name)
	if err != nil {
		return "", err
	}
	out, serr := n.engine.ParseAndRenderString(src, bindings)
	if serr != nil {
		return "", fmt.Errorf("render %s: %w", name, serr)
	}
	return out, nil
}

func (n *Notifier) load(name string) (string, error) {
	if n.overrideDir != "" {
		data, err := os.ReadFile(filepath.Join(n.overrideDir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read template %s: %w", name, err)
		}
	}
	data, err := builtin.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return string(data), nil
}
