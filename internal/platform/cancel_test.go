package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/daviddao/crosslist/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct {
	tag      string
	clickErr error
	clicked  int
}

func (e *fakeElement) Tag() string { return e.tag }
func (e *fakeElement) Click() error {
	e.clicked++
	return e.clickErr
}

type fakeSession struct {
	navErr   error
	landed   string // "" means "the requested URL"
	elements []browser.Element
	findErr  error

	visited []string
	closed  bool
}

func (s *fakeSession) Navigate(url string) error {
	s.visited = append(s.visited, url)
	return s.navErr
}

func (s *fakeSession) CurrentURL() (string, error) {
	if s.landed != "" {
		return s.landed, nil
	}
	return s.visited[len(s.visited)-1], nil
}

func (s *fakeSession) FindAll(string) ([]browser.Element, error) { return s.elements, s.findErr }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeDriver struct {
	session *fakeSession
	err     error
	opened  int
}

func (d *fakeDriver) Open(context.Context) (browser.Session, error) {
	d.opened++
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

func newTestCanceller(d browser.Driver) (*Canceller, *[]time.Duration) {
	c := NewCanceller(d, DefaultSettle, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func TestCancelSucceeds(t *testing.T) {
	button := &fakeElement{tag: "button"}
	s := &fakeSession{elements: []browser.Element{button}}
	c, slept := newTestCanceller(&fakeDriver{session: s})

	err := c.Cancel(context.Background(), Mercari, "m1")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://jp.mercari.com/sell/edit/m1"}, s.visited)
	assert.Equal(t, 1, button.clicked)
	assert.Equal(t, []time.Duration{DefaultSettle}, *slept)
	assert.True(t, s.closed)
}

func TestCancelFailures(t *testing.T) {
	tests := []struct {
		name    string
		session *fakeSession
		want    CancelErrorKind
		detail  string
	}{
		{
			name:    "navigation error",
			session: &fakeSession{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
			want:    PageUnreachable,
			detail:  "https://page.auctions.yahoo.co.jp/jp/show/cancelauction?aID=y1",
		},
		{
			name:    "redirected to login",
			session: &fakeSession{landed: "https://login.yahoo.co.jp/config/login"},
			want:    PageUnreachable,
			detail:  "https://page.auctions.yahoo.co.jp/jp/show/cancelauction?aID=y1",
		},
		{
			name:    "control absent",
			session: &fakeSession{},
			want:    ControlNotFound,
			detail:  YahooAuction.Control().XPath,
		},
		{
			name: "control ambiguous",
			session: &fakeSession{elements: []browser.Element{
				&fakeElement{tag: "input"}, &fakeElement{tag: "input"},
			}},
			want:   ControlNotFound,
			detail: YahooAuction.Control().XPath,
		},
		{
			name:    "wrong element kind",
			session: &fakeSession{elements: []browser.Element{&fakeElement{tag: "div"}}},
			want:    ControlNotFound,
			detail:  YahooAuction.Control().XPath,
		},
		{
			name:    "find error",
			session: &fakeSession{findErr: errors.New("invalid xpath")},
			want:    ControlNotFound,
			detail:  YahooAuction.Control().XPath,
		},
		{
			name:    "click fails",
			session: &fakeSession{elements: []browser.Element{&fakeElement{tag: "input", clickErr: errors.New("detached")}}},
			want:    ActivationFailed,
			detail:  YahooAuction.Control().XPath,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, slept := newTestCanceller(&fakeDriver{session: tt.session})

			err := c.Cancel(context.Background(), YahooAuction, "y1")
			require.Error(t, err)

			var ce *CancelError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.want, ce.Kind)
			assert.Equal(t, tt.detail, ce.Detail)
			assert.Equal(t, "y1", ce.ItemID)
			assert.Equal(t, YahooAuction.Name(), ce.Platform)
			assert.Contains(t, err.Error(), tt.detail)
			assert.True(t, IsCancelError(err))

			assert.True(t, tt.session.closed, "session must be released on failure")
			assert.Empty(t, *slept)
		})
	}
}

func TestCancelOpenFailureIsNotCancelError(t *testing.T) {
	d := &fakeDriver{err: errors.New("chrome not found")}
	c, _ := newTestCanceller(d)

	err := c.Cancel(context.Background(), Mercari, "m1")
	require.Error(t, err)
	assert.False(t, IsCancelError(err))
	assert.Equal(t, 1, d.opened)
}

func TestCancelOpensFreshSessionPerCall(t *testing.T) {
	s := &fakeSession{elements: []browser.Element{&fakeElement{tag: "button"}}}
	d := &fakeDriver{session: s}
	c, _ := newTestCanceller(d)

	require.NoError(t, c.Cancel(context.Background(), Mercari, "m1"))
	require.NoError(t, c.Cancel(context.Background(), Mercari, "m2"))
	assert.Equal(t, 2, d.opened)
}
