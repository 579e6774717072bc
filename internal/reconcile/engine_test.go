package reconcile

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"testing"

	"github.com/daviddao/crosslist/internal/platform"
	"github.com/daviddao/crosslist/internal/sheets"
	"github.com/daviddao/crosslist/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLabel = "crosslist-done"

// fakeMailbox answers searches by platform query and hides labelled mail the
// way Gmail's -{label:...} clause does.
type fakeMailbox struct {
	results  map[string][]string // sold-mail query -> mail IDs
	bodies   map[string]string
	labels   []types.Label
	labelled map[string]bool

	queries  []string
	applied  []string // mail IDs in labelling order
	created  int
	getErr   error
	labelErr error
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		results:  map[string][]string{},
		bodies:   map[string]string{},
		labelled: map[string]bool{},
	}
}

func (m *fakeMailbox) addMail(p *platform.Platform, id, body string) {
	m.results[p.SoldMailQuery()] = append(m.results[p.SoldMailQuery()], id)
	m.bodies[id] = body
}

func (m *fakeMailbox) Search(_ context.Context, query string) ([]string, error) {
	m.queries = append(m.queries, query)
	var ids []string
	for q, found := range m.results {
		if !strings.HasPrefix(query, q) {
			continue
		}
		for _, id := range found {
			if !m.labelled[id] {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (m *fakeMailbox) Get(_ context.Context, id string) (*types.Mail, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &types.Mail{ID: id, Body: m.bodies[id]}, nil
}

func (m *fakeMailbox) ListLabels(context.Context) ([]types.Label, error) {
	return m.labels, nil
}

func (m *fakeMailbox) CreateLabel(_ context.Context, name string) (types.Label, error) {
	m.created++
	l := types.Label{ID: "Label_1", Name: name}
	m.labels = append(m.labels, l)
	return l, nil
}

func (m *fakeMailbox) AddLabels(_ context.Context, id string, labelIDs []string) error {
	if m.labelErr != nil {
		return m.labelErr
	}
	if slices.Contains(labelIDs, "Label_1") {
		m.labelled[id] = true
	}
	m.applied = append(m.applied, id)
	return nil
}

func (m *fakeMailbox) RemoveLabels(_ context.Context, id string, labelIDs []string) error {
	if m.labelErr != nil {
		return m.labelErr
	}
	if slices.Contains(labelIDs, "Label_1") {
		delete(m.labelled, id)
	}
	return nil
}

type update struct {
	rng   string
	value string
	input sheets.InputOption
}

type fakeSheet struct {
	values  [][]string
	updates []update
	getErr  error
}

func (s *fakeSheet) GetValues(_ context.Context, _, rng string, _ sheets.Dimension) ([][]string, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.values, nil
}

func (s *fakeSheet) UpdateValues(_ context.Context, _, rng string, values [][]string, _ sheets.Dimension, input sheets.InputOption) error {
	s.updates = append(s.updates, update{rng, values[0][0], input})
	return nil
}

type attempt struct {
	platform string
	itemID   string
}

type fakeCanceller struct {
	attempts []attempt
	errs     map[string]error // item ID -> error
}

func (c *fakeCanceller) Cancel(_ context.Context, p *platform.Platform, itemID string) error {
	c.attempts = append(c.attempts, attempt{p.Code(), itemID})
	return c.errs[itemID]
}

type notice struct {
	ok         bool
	to         string
	platform   string
	itemID     string
	trackingID string
}

type fakeNotifier struct {
	notices []notice
}

func (n *fakeNotifier) NotifySuccess(_ context.Context, to string, p *platform.Platform, itemID, trackingID string) error {
	n.notices = append(n.notices, notice{true, to, p.Code(), itemID, trackingID})
	return nil
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, to string, p *platform.Platform, itemID, trackingID string, _ error) error {
	n.notices = append(n.notices, notice{false, to, p.Code(), itemID, trackingID})
	return nil
}

type fakeJournal struct {
	mails []string
	sales []types.Sale
}

func (j *fakeJournal) RecordMail(_, _, mailID, _ string) error {
	j.mails = append(j.mails, mailID)
	return nil
}

func (j *fakeJournal) RecordSale(_ string, sale types.Sale) error {
	j.sales = append(j.sales, sale)
	return nil
}

type fixture struct {
	mail      *fakeMailbox
	sheet     *fakeSheet
	canceller *fakeCanceller
	notifier  *fakeNotifier
	journal   *fakeJournal
}

func newFixture(rows ...[]string) *fixture {
	return &fixture{
		mail:      newFakeMailbox(),
		sheet:     &fakeSheet{values: rows},
		canceller: &fakeCanceller{errs: map[string]error{}},
		notifier:  &fakeNotifier{},
		journal:   &fakeJournal{},
	}
}

func (f *fixture) engine(mailTo string) *Engine {
	return New(f.mail, f.sheet, f.canceller, f.notifier, Options{
		SpreadsheetID: "sheet",
		Label:         testLabel,
		MailTo:        mailTo,
		Journal:       f.journal,
	})
}

func mercariMail(id string) string { return "ご購入ありがとうございます。\n商品ID : " + id + "\n" }
func yahooMail(id string) string { return "落札されました。\nオークションID：" + id + "\n" }

func collect(t *testing.T, seq iter.Seq2[string, error]) []string {
	t.Helper()
	var out []string
	for id, err := range seq {
		require.NoError(t, err)
		out = append(out, id)
	}
	return out
}

func TestSoldMailIDsLabelsEachMailInOrder(t *testing.T) {
	f := newFixture()
	f.mail.addMail(platform.Mercari, "a", "")
	f.mail.addMail(platform.Mercari, "b", "")
	e := f.engine("")

	ids := collect(t, e.SoldMailIDs(context.Background(), platform.Mercari))

	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, []string{"a", "b"}, f.mail.applied)
	assert.Equal(t, 1, f.mail.created)
	require.Len(t, f.mail.queries, 1)
	assert.Equal(t, platform.Mercari.SoldMailQuery()+" AND -{label:crosslist-done}", f.mail.queries[0])
}

func TestSoldMailIDsLabelsBeforeNextID(t *testing.T) {
	f := newFixture()
	f.mail.addMail(platform.Mercari, "a", "")
	f.mail.addMail(platform.Mercari, "b", "")
	e := f.engine("")

	var seen [][]string
	for _, err := range e.SoldMailIDs(context.Background(), platform.Mercari) {
		require.NoError(t, err)
		seen = append(seen, slices.Clone(f.mail.applied))
	}
	assert.Equal(t, [][]string{nil, {"a"}}, seen)
}

func TestSoldMailIDsNeverRepeats(t *testing.T) {
	f := newFixture()
	f.mail.addMail(platform.YahooAuction, "a", "")
	f.mail.addMail(platform.YahooAuction, "b", "")
	e := f.engine("")

	first := collect(t, e.SoldMailIDs(context.Background(), platform.YahooAuction))
	second := collect(t, e.SoldMailIDs(context.Background(), platform.YahooAuction))

	assert.Equal(t, []string{"a", "b"}, first)
	assert.Empty(t, second)
	assert.Equal(t, 1, f.mail.created, "label is created once and reused")
}

func TestRequeueOffersMailAgain(t *testing.T) {
	f := newFixture()
	f.mail.addMail(platform.Mercari, "a", "")
	f.mail.addMail(platform.Mercari, "b", "")
	e := f.engine("")

	collect(t, e.SoldMailIDs(context.Background(), platform.Mercari))
	require.NoError(t, e.Requeue(context.Background(), []string{"b"}))

	assert.Equal(t, []string{"b"}, collect(t, e.SoldMailIDs(context.Background(), platform.Mercari)))
}

func TestSoldMailIDsBreakLeavesMailUnlabelled(t *testing.T) {
	f := newFixture()
	f.mail.addMail(platform.Mercari, "a", "")
	f.mail.addMail(platform.Mercari, "b", "")
	e := f.engine("")

	for range e.SoldMailIDs(context.Background(), platform.Mercari) {
		break
	}
	assert.Empty(t, f.mail.applied)

	// The mail is offered again on the next pass.
	assert.Equal(t, []string{"a", "b"}, collect(t, e.SoldMailIDs(context.Background(), platform.Mercari)))
}

func TestSoldMailIDsReusesExistingLabel(t *testing.T) {
	f := newFixture()
	f.mail.labels = []types.Label{{ID: "INBOX", Name: "INBOX"}, {ID: "Label_1", Name: testLabel}}
	f.mail.addMail(platform.Mercari, "a", "")

	collect(t, f.engine("").SoldMailIDs(context.Background(), platform.Mercari))
	assert.Zero(t, f.mail.created)
	assert.True(t, f.mail.labelled["a"])
}

func TestSoldMailIDsDuplicateLabel(t *testing.T) {
	f := newFixture()
	f.mail.labels = []types.Label{{ID: "Label_1", Name: testLabel}, {ID: "Label_2", Name: testLabel}}
	f.mail.addMail(platform.Mercari, "a", "")

	var errs []error
	for _, err := range f.engine("").SoldMailIDs(context.Background(), platform.Mercari) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrDuplicateLabel)
	assert.Empty(t, f.mail.queries)
}

func TestSoldMailIDsLabelError(t *testing.T) {
	f := newFixture()
	f.mail.addMail(platform.Mercari, "a", "")
	f.mail.addMail(platform.Mercari, "b", "")
	f.mail.labelErr = errors.New("rate limited")

	var ids []string
	var lastErr error
	for id, err := range f.engine("").SoldMailIDs(context.Background(), platform.Mercari) {
		if err != nil {
			lastErr = err
			continue
		}
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"a"}, ids)
	assert.ErrorContains(t, lastErr, "rate limited")
}

func TestSoldItemIDsSkipsMailWithoutMatch(t *testing.T) {
	f := newFixture()
	f.mail.addMail(platform.Mercari, "a", "newsletter")
	f.mail.addMail(platform.Mercari, "b", mercariMail("m42"))
	f.mail.addMail(platform.Mercari, "c", "")

	items := collect(t, f.engine("").SoldItemIDs(context.Background(), platform.Mercari))

	assert.Equal(t, []string{"m42"}, items)
	assert.Equal(t, []string{"a", "b", "c"}, f.mail.applied, "unmatched mail is still processed")
}

func TestSoldItemIDsGetErrorKeepsMailUnlabelled(t *testing.T) {
	f := newFixture()
	f.mail.addMail(platform.Mercari, "a", mercariMail("m1"))
	f.mail.getErr = errors.New("backend error")

	var errs []error
	for _, err := range f.engine("").SoldItemIDs(context.Background(), platform.Mercari) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "get mail a")
	assert.Empty(t, f.mail.applied)
}

func TestRunSoldWithoutOtherListing(t *testing.T) {
	f := newFixture([]string{"c00001", "", "m1", "", "FALSE"})
	f.mail.addMail(platform.Mercari, "mail-1", mercariMail("m1"))

	sum, err := f.engine("ops@example.com").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []update{{"E2", "TRUE", sheets.UserEntered}}, f.sheet.updates)
	assert.Empty(t, f.canceller.attempts)
	assert.Empty(t, f.notifier.notices)

	require.Len(t, sum.Sales, 1)
	assert.Equal(t, "c00001", sum.Sales[0].TrackingID)
	assert.Empty(t, sum.Sales[0].Outcomes)
	assert.Equal(t, 1, sum.Scanned)
	assert.NotEmpty(t, sum.RunID)
}

func TestRunControlNotFoundNotifiesAndContinues(t *testing.T) {
	f := newFixture([]string{"c00001", "", "m1", "y1", "FALSE"})
	f.mail.addMail(platform.Mercari, "mail-1", mercariMail("m1"))
	f.canceller.errs["y1"] = &platform.CancelError{
		Kind:     platform.ControlNotFound,
		Platform: platform.YahooAuction.Code(),
		ItemID:   "y1",
		Detail:   platform.YahooAuction.Control().XPath,
	}

	sum, err := f.engine("ops@example.com").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []update{{"E2", "TRUE", sheets.UserEntered}}, f.sheet.updates)
	assert.Equal(t, []attempt{{"yahoo_auction", "y1"}}, f.canceller.attempts)
	assert.Equal(t, []notice{{false, "ops@example.com", "yahoo_auction", "y1", "c00001"}}, f.notifier.notices)

	require.Len(t, sum.Sales, 1)
	require.Len(t, sum.Sales[0].Outcomes, 1)
	assert.False(t, sum.Sales[0].Outcomes[0].Succeeded)
	assert.Contains(t, sum.Sales[0].Outcomes[0].Reason, "control not found")
	assert.Equal(t, 1, sum.Failed)
	assert.True(t, f.mail.labelled["mail-1"])
}

func TestRunCancelsOtherPlatformAndNotifiesSuccess(t *testing.T) {
	f := newFixture(
		[]string{"c00001", "Camera", "m1", "y1"},
		[]string{"c00002", "Lens", "m2", "y2"},
	)
	f.mail.addMail(platform.YahooAuction, "mail-9", yahooMail("y2"))

	sum, err := f.engine("ops@example.com").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []update{{"E3", "TRUE", sheets.UserEntered}}, f.sheet.updates)
	assert.Equal(t, []attempt{{"mercari", "m2"}}, f.canceller.attempts)
	assert.Equal(t, []notice{{true, "ops@example.com", "mercari", "m2", "c00002"}}, f.notifier.notices)
	assert.Equal(t, 1, sum.Cancelled)
}

func TestRunFailureDoesNotStopLaterSales(t *testing.T) {
	f := newFixture(
		[]string{"c00001", "", "m1", "y1"},
		[]string{"c00002", "", "m2", "y2"},
	)
	f.mail.addMail(platform.Mercari, "mail-1", mercariMail("m1"))
	f.mail.addMail(platform.Mercari, "mail-2", mercariMail("m2"))
	f.canceller.errs["y1"] = &platform.CancelError{Kind: platform.PageUnreachable, Platform: "yahoo_auction", ItemID: "y1"}

	sum, err := f.engine("").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []attempt{{"yahoo_auction", "y1"}, {"yahoo_auction", "y2"}}, f.canceller.attempts)
	assert.Len(t, f.sheet.updates, 2)
	assert.Empty(t, f.notifier.notices, "no recipient, no notifications")
	assert.Equal(t, 1, sum.Cancelled)
	assert.Equal(t, 1, sum.Failed)
}

func TestRunSkipsUntrackedItems(t *testing.T) {
	f := newFixture([]string{"c00001", "", "m1"})
	f.mail.addMail(platform.Mercari, "mail-1", mercariMail("zzz"))
	f.mail.addMail(platform.YahooAuction, "mail-2", yahooMail("m1"))

	sum, err := f.engine("ops@example.com").Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.sheet.updates)
	assert.Empty(t, f.canceller.attempts)
	assert.Empty(t, sum.Sales)
	assert.Equal(t, 2, sum.Scanned)
	assert.True(t, f.mail.labelled["mail-1"])
	assert.True(t, f.mail.labelled["mail-2"])
}

func TestRunWalksPlatformsInRegistryOrder(t *testing.T) {
	f := newFixture(
		[]string{"c00001", "", "m1", "y1"},
		[]string{"c00002", "", "m2", "y2"},
	)
	f.mail.addMail(platform.YahooAuction, "mail-y", yahooMail("y2"))
	f.mail.addMail(platform.Mercari, "mail-m", mercariMail("m1"))

	_, err := f.engine("").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []attempt{{"yahoo_auction", "y1"}, {"mercari", "m2"}}, f.canceller.attempts)
	assert.Equal(t, []string{"mail-m", "mail-y"}, f.journal.mails)
}

func TestRunSheetErrorAborts(t *testing.T) {
	f := newFixture()
	f.sheet.getErr = errors.New("quota exceeded")
	f.mail.addMail(platform.Mercari, "mail-1", mercariMail("m1"))

	_, err := f.engine("").Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Empty(t, f.mail.queries)
}

func TestRunNonCancelErrorIsFatal(t *testing.T) {
	f := newFixture([]string{"c00001", "", "m1", "y1"})
	f.mail.addMail(platform.Mercari, "mail-1", mercariMail("m1"))
	f.canceller.errs["y1"] = errors.New("open browser session: chrome not found")

	_, err := f.engine("ops@example.com").Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "chrome not found")
	assert.Empty(t, f.notifier.notices)
	assert.False(t, f.mail.labelled["mail-1"], "aborted iteration leaves the mail for the next run")
}

func TestRunJournalsScannedMailAndSales(t *testing.T) {
	f := newFixture([]string{"c00001", "", "m1", "y1"})
	f.mail.addMail(platform.Mercari, "mail-1", mercariMail("m1"))
	f.mail.addMail(platform.Mercari, "mail-2", "unrelated")

	_, err := f.engine("").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"mail-1", "mail-2"}, f.journal.mails)
	require.Len(t, f.journal.sales, 1)
	assert.Equal(t, types.Sale{Platform: "mercari", ItemID: "m1", TrackingID: "c00001"}, f.journal.sales[0])
}
