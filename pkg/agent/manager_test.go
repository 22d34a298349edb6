package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/api"
	"github.com/royhairul/auto-ads-shopee/pkg/clock"
	"github.com/royhairul/auto-ads-shopee/pkg/config"
)

func testConfig(t *testing.T, platformURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Agent: config.AgentConfig{DataDir: t.TempDir(), Timezone: "Asia/Jakarta"},
		Shopee: config.ShopeeConfig{
			SellerURL:     platformURL,
			AccountURL:    platformURL,
			CreatorURL:    platformURL,
			Cookie:        "SPC_EC=test",
			SPCCDS:        "00000000-0000-0000-0000-000000000000",
			Timeout:       time.Second,
			CampaignLimit: 20,
			Breaker:       config.BreakerConfig{ConsecutiveFailures: 5, OpenTimeout: time.Second},
		},
		Scheduler: config.SchedulerConfig{Interval: time.Hour},
		Server:    config.ServerConfig{Enabled: true, ListenAddr: "127.0.0.1", Port: 0},
		Events:    config.EventsConfig{QueueSize: 10},
		ErrorLog:  config.ErrorLogConfig{MaxEntries: 20},
		Health:    config.HealthConfig{CheckInterval: time.Hour},
	}
}

func newPlatform(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":0,"msg":"","data":null}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newDryRunManager(t *testing.T) *Manager {
	t.Helper()
	cfg := testConfig(t, newPlatform(t).URL)
	m, err := NewManager(cfg,
		WithDryRun(),
		WithLogger(zap.NewNop()),
		WithClock(clock.NewManual(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	return m
}

func TestNewManager_UnknownTimezone(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Agent.Timezone = "Mars/Olympus_Mons"
	_, err := NewManager(cfg, WithLogger(zap.NewNop()))
	assert.Error(t, err)
}

func TestManager_InitIsIdempotent(t *testing.T) {
	m := newDryRunManager(t)
	ctx := context.Background()

	require.NoError(t, m.Init(ctx))
	d := m.Dispatcher()
	require.NoError(t, m.Init(ctx))
	assert.Same(t, d, m.Dispatcher())
	require.NoError(t, m.Close())
}

func TestManager_StatusBeforeStart(t *testing.T) {
	m := newDryRunManager(t)
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))
	defer m.Close()

	st, err := m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.ExtensionActive)
	assert.False(t, st.FirstInstallDone)
	assert.False(t, st.Scheduler.Enabled)
	assert.Equal(t, "1h0m0s", st.Scheduler.Interval)
	assert.Equal(t, "closed", st.Breaker)
	assert.Equal(t, "uninitialized", st.Components["dispatcher"])
	assert.Nil(t, st.LastCycle)
	assert.Empty(t, st.LiveSessions)
}

func TestManager_StartServesAndShutsDown(t *testing.T) {
	m := newDryRunManager(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	assert.Error(t, m.Start(ctx), "second start is rejected")

	resp, err := http.Get("http://" + m.server.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	st, err := m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.FirstInstallDone, "first launch primes install")
	assert.Equal(t, "2025-03-10", st.LastActiveDate)
	assert.True(t, st.Scheduler.Enabled)
	assert.Equal(t, "running", st.Components["server"])

	// The platform returns no profile, so the cycle stops there.
	resp2, err := m.Dispatcher().Handle(ctx, api.Message{Type: api.TypeForceCheck})
	require.NoError(t, err)
	assert.True(t, resp2.OK)
	assert.NotEmpty(t, resp2.Outcome)

	m.Shutdown()
	assert.False(t, m.scheduler.Enabled())
	assert.False(t, m.server.IsRunning())
	m.Shutdown()
}

func TestDryRunWriter(t *testing.T) {
	w := &dryRunWriter{logger: zap.NewNop()}
	res, err := w.SetCampaignStatus(context.Background(), 1, "pause")
	require.NoError(t, err)
	assert.True(t, res.OK())
}

type stubComponent struct {
	name     string
	startErr error
	log      *[]string
}

func (s stubComponent) Name() string { return s.name }

func (s stubComponent) Start(context.Context) error {
	*s.log = append(*s.log, "start "+s.name)
	return s.startErr
}

func (s stubComponent) Stop(context.Context) error {
	*s.log = append(*s.log, "stop "+s.name)
	return nil
}

func TestCoordinator_OrderAndPartialStart(t *testing.T) {
	var log []string
	c := NewCoordinator(zap.NewNop())
	c.Register(stubComponent{name: "a", log: &log})
	c.Register(stubComponent{name: "b", log: &log, startErr: errors.New("boom")})
	c.Register(stubComponent{name: "c", log: &log})

	ctx := context.Background()
	require.Error(t, c.StartAll(ctx))
	assert.Equal(t, StateRunning, c.GetState("a"))
	assert.Equal(t, StateError, c.GetState("b"))
	assert.Equal(t, StateUninitialized, c.GetState("c"))

	c.StopAll(ctx)
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
	assert.Equal(t, map[string]string{"a": "stopped", "b": "stopped", "c": "uninitialized"}, c.GetAllStates())
}
