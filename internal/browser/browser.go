// Package browser drives a Chrome instance for the marketplace web UIs.
//
// Every cancellation opens its own Session and closes it on the way out, so
// the interfaces here are deliberately small: navigate, read the landed URL,
// find elements by XPath, click.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// Element is an interactive node found on a page.
type Element interface {
	// Tag returns the lower-case element name, e.g. "button" or "input".
	Tag() string
	Click() error
}

// Session is one exclusive browser session.
type Session interface {
	Navigate(url string) error
	CurrentURL() (string, error)
	// FindAll returns every element matching the XPath. It waits up to the
	// session's implicit wait for at least one match and returns an empty
	// slice if none appears.
	FindAll(xpath string) ([]Element, error)
	Close() error
}

// Driver opens browser sessions.
type Driver interface {
	Open(ctx context.Context) (Session, error)
}

// Options configures the Chrome driver.
type Options struct {
	// UserDataDir is the Chrome profile directory. Marketplace logins live
	// here, so it must be the same profile the operator logged in with.
	UserDataDir string
	// Args are additional Chrome command-line switches ("--name=value").
	Args         []string
	Headless     bool
	ImplicitWait time.Duration
}

// Chrome is a Driver backed by chromedp.
type Chrome struct {
	opts Options
}

var _ Driver = (*Chrome)(nil)

// NewChrome returns a Chrome driver. ImplicitWait defaults to 30s.
func NewChrome(opts Options) *Chrome {
	if opts.ImplicitWait <= 0 {
		opts.ImplicitWait = 30 * time.Second
	}
	return &Chrome{opts: opts}
}

// Open launches Chrome and returns a session attached to its first tab.
func (c *Chrome) Open(ctx context.Context) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromeSession{
		ctx:  tabCtx,
		wait: c.opts.ImplicitWait,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}, nil
}

// Browse opens a visible window on url and blocks until the operator closes
// it. It is used to log in to the marketplaces with the shared profile.
func (c *Chrome) Browse(ctx context.Context, url string) error {
	visible := *c
	visible.opts.Headless = false
	s, err := visible.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Navigate(url); err != nil {
		return err
	}
	for {
		if _, err := s.CurrentURL(); err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("enable-automation", false),
	)
	if c.opts.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(c.opts.UserDataDir))
	}
	for _, arg := range c.opts.Args {
		name, value := ParseSwitch(arg)
		if name == "" {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// ParseSwitch splits a Chrome switch like "--window-size=800,600" into its
// name and value. Switches without a value map to true.
func ParseSwitch(arg string) (string, any) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return "", nil
	}
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return name, true
	}
	return name, value
}

type chromeSession struct {
	ctx    context.Context
	cancel func()
	wait   time.Duration
}

func (s *chromeSession) Navigate(url string) error {
	return chromedp.Run(s.ctx, chromedp.Navigate(url))
}

func (s *chromeSession) CurrentURL() (string, error) {
	var u string
	if err := chromedp.Run(s.ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (s *chromeSession) FindAll(xpath string) ([]Element, error) {
	waitCtx, cancel := context.WithTimeout(s.ctx, s.wait)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(waitCtx, chromedp.Nodes(xpath, &nodes, chromedp.BySearch))
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	elems := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, &chromeElement{s: s, node: n})
	}
	return elems, nil
}

func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chromeElement struct {
	s    *chromeSession
	node *cdp.Node
}

func (e *chromeElement) Tag() string {
	return strings.ToLower(e.node.NodeName)
}

func (e *chromeElement) Click() error {
	return chromedp.Run(e.s.ctx, chromedp.MouseClickNode(e.node))
}
