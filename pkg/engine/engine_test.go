package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/clock"
	"github.com/royhairul/auto-ads-shopee/pkg/events"
	"github.com/royhairul/auto-ads-shopee/pkg/notify"
	"github.com/royhairul/auto-ads-shopee/pkg/settings"
	"github.com/royhairul/auto-ads-shopee/pkg/shopee"
	"github.com/royhairul/auto-ads-shopee/pkg/state"
	"github.com/royhairul/auto-ads-shopee/pkg/store"
)

var wib = time.FixedZone("WIB", 7*3600)

type fakeService struct {
	mu          sync.Mutex
	profile     *shopee.Profile
	profileErr  error
	account     *shopee.AccountSummary
	accountErr  error
	campaigns   []shopee.Campaign
	listErr     error
	live        []shopee.LiveSession
	limits      map[int64]*shopee.BudgetLimits
	limitsPanic map[int64]bool
	calls       map[string]int
}

func newFakeService() *fakeService {
	return &fakeService{
		profile: &shopee.Profile{UserID: 1, Username: "seller", IsSeller: true},
		account: &shopee.AccountSummary{AccountBalance: major(1_000_000)},
		live:    []shopee.LiveSession{{SessionID: 77, Title: "Flash sale", Status: 1}},
		limits:  map[int64]*shopee.BudgetLimits{},
		calls:   map[string]int{},
	}
}

func (f *fakeService) called(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeService) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeService) GetProfile(context.Context) (*shopee.Profile, error) {
	f.called("profile")
	return f.profile, f.profileErr
}

func (f *fakeService) GetAccountBalanceAndSpend(context.Context) (*shopee.AccountSummary, error) {
	f.called("balance")
	return f.account, f.accountErr
}

func (f *fakeService) GetCampaignList(context.Context, shopee.CampaignState) ([]shopee.Campaign, error) {
	f.called("campaigns")
	out := make([]shopee.Campaign, len(f.campaigns))
	copy(out, f.campaigns)
	return out, f.listErr
}

func (f *fakeService) GetCampaignMinimumBudget(_ context.Context, id int64) (*shopee.BudgetLimits, error) {
	f.called("minimum")
	if f.limitsPanic[id] {
		panic("budget data exploded")
	}
	return f.limits[id], nil
}

func (f *fakeService) GetActiveLiveSessions(context.Context) ([]shopee.LiveSession, error) {
	f.called("live")
	return f.live, nil
}

type budgetCall struct {
	id    int64
	major decimal.Decimal
}

type fakeWriter struct {
	mu      sync.Mutex
	calls   []budgetCall
	results map[int64]shopee.Result
	errs    map[int64]error
	panics  bool
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{results: map[int64]shopee.Result{}, errs: map[int64]error{}}
}

func (w *fakeWriter) SetDailyBudget(_ context.Context, id int64, m decimal.Decimal) (shopee.Result, error) {
	if w.panics {
		panic("writer exploded")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, budgetCall{id: id, major: m})
	if err := w.errs[id]; err != nil {
		return shopee.Result{}, err
	}
	return w.results[id], nil
}

func (w *fakeWriter) SetCampaignStatus(context.Context, int64, shopee.StatusAction) (shopee.Result, error) {
	return shopee.Result{}, nil
}

func (w *fakeWriter) budgetsFor(id int64) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, c := range w.calls {
		if c.id == id {
			out = append(out, c.major.String())
		}
	}
	return out
}

type fakeNotifier struct {
	alerts []notify.Alert
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, a notify.Alert) error {
	n.alerts = append(n.alerts, a)
	return n.err
}

func (n *fakeNotifier) titles() []string {
	var out []string
	for _, a := range n.alerts {
		out = append(out, a.Title)
	}
	return out
}

type fakePublisher struct {
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) {
	p.events = append(p.events, e)
}

func (p *fakePublisher) types() []events.Type {
	var out []events.Type
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeScheduler struct {
	disabled int
}

func (s *fakeScheduler) Disable() { s.disabled++ }

type fakeErrors struct {
	errs   []error
	panics []any
}

func (f *fakeErrors) Record(_ context.Context, err error, _ map[string]any) {
	f.errs = append(f.errs, err)
}

func (f *fakeErrors) RecordPanic(_ context.Context, r any, _ []byte, _ map[string]any) {
	f.panics = append(f.panics, r)
}

type harness struct {
	ctx       context.Context
	engine    *Engine
	svc       *fakeService
	writer    *fakeWriter
	notifier  *fakeNotifier
	publisher *fakePublisher
	scheduler *fakeScheduler
	errs      *fakeErrors
	state     *state.State
	clock     *clock.Manual
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		ctx:       context.Background(),
		svc:       newFakeService(),
		writer:    newFakeWriter(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		scheduler: &fakeScheduler{},
		errs:      &fakeErrors{},
		state:     state.New(store.NewMemory(), store.NewMemory()),
		clock:     clock.NewManual(time.Date(2025, 3, 10, 14, 0, 0, 0, wib)),
	}
	h.engine = New(Deps{
		Service:   h.svc,
		Writer:    h.writer,
		Store:     h.state,
		Notifier:  h.notifier,
		Publisher: h.publisher,
		Scheduler: h.scheduler,
		Clock:     h.clock,
		Errors:    h.errs,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, h.state.PrimeInstall(h.ctx, clock.Today(h.clock)))
	return h
}

func (h *harness) setSettings(t *testing.T, mutate func(*settings.Settings)) {
	t.Helper()
	s := settings.Defaults()
	if mutate != nil {
		mutate(&s)
	}
	require.NoError(t, h.state.SaveSettings(h.ctx, s))
}

func (h *harness) nowMs() int64 {
	return clock.Millis(h.clock.Now())
}

func (h *harness) bookkeeping(t *testing.T) *state.Bookkeeping {
	t.Helper()
	b, err := h.state.LoadBookkeeping(h.ctx)
	require.NoError(t, err)
	return b
}

// major converts rupiah to platform-scaled units.
func major(rupiah int64) int64 {
	return rupiah * shopee.CurrencyScale
}

func roas(v float64) *float64 { return &v }

func campaign(id int64, spent, budget int64, r *float64) shopee.Campaign {
	return shopee.Campaign{
		ID:          id,
		Title:       "Campaign",
		State:       shopee.StateOngoing,
		Spent:       major(spent),
		DailyBudget: major(budget),
		ROAS:        r,
	}
}

var errTransport = errors.New("connection reset")

func newBook() *state.Bookkeeping {
	return state.NewBookkeeping()
}
