package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/daviddao/crosslist/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to, subject, body string
}

type fakeSender struct {
	mails []sent
	err   error
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.mails = append(f.mails, sent{to, subject, body})
	return nil
}

func TestNotifySuccess(t *testing.T) {
	s := &fakeSender{}
	n := New(s, "")

	err := n.NotifySuccess(context.Background(), "ops@example.com", platform.YahooAuction, "x100", "c00001")
	require.NoError(t, err)
	require.Len(t, s.mails, 1)

	m := s.mails[0]
	assert.Equal(t, "ops@example.com", m.to)
	assert.Equal(t, "【crosslist】出品取り消し", m.subject)
	assert.Contains(t, m.body, "ヤフオク!")
	assert.Contains(t, m.body, "x100")
	assert.Contains(t, m.body, "c00001")
	assert.Contains(t, m.body, "https://page.auctions.yahoo.co.jp/jp/auction/x100")
	assert.NotContains(t, m.body, "原因")
}

func TestNotifyFailure(t *testing.T) {
	s := &fakeSender{}
	n := New(s, "")

	cause := &platform.CancelError{Kind: platform.ControlNotFound, Platform: "mercari", ItemID: "m1", Detail: "//button"}
	err := n.NotifyFailure(context.Background(), "ops@example.com", platform.Mercari, "m1", "c00002", cause)
	require.NoError(t, err)
	require.Len(t, s.mails, 1)

	m := s.mails[0]
	assert.Equal(t, "【crosslist】出品取り消し(エラー)", m.subject)
	assert.Contains(t, m.body, "メルカリ")
	assert.Contains(t, m.body, "https://jp.mercari.com/item/m1")
	assert.Contains(t, m.body, "control not found")
}

func TestNotifyEscapesBindings(t *testing.T) {
	s := &fakeSender{}
	n := New(s, "")

	require.NoError(t, n.NotifySuccess(context.Background(), "<ops>", platform.Mercari, "m1", "<c1>"))
	assert.Contains(t, s.mails[0].body, "&lt;c1&gt;")
	assert.NotContains(t, s.mails[0].body, "<c1>")
}

func TestNotifyOverrideTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notify_success.html"),
		[]byte("withdrew {{ item_id }} on {{ platform_name }}"), 0o644))

	s := &fakeSender{}
	n := New(s, dir)

	require.NoError(t, n.NotifySuccess(context.Background(), "ops@example.com", platform.Mercari, "m9", "c9"))
	assert.Equal(t, "withdrew m9 on メルカリ", s.mails[0].body)

	// Templates missing from the override dir fall back to the built-in ones.
	require.NoError(t, n.NotifyFailure(context.Background(), "ops@example.com", platform.Mercari, "m9", "c9", nil))
	assert.Contains(t, s.mails[1].body, "手動で取り消してください")
}

func TestNotifySendError(t *testing.T) {
	n := New(&fakeSender{err: errors.New("quota")}, "")

	err := n.NotifySuccess(context.Background(), "ops@example.com", platform.Mercari, "m1", "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestRenderBadTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notify_success.html"), []byte("{% if %}"), 0o644))

	_, err := New(&fakeSender{}, dir).Render("notify_success.html", map[string]any{})
	assert.Error(t, err)
}
