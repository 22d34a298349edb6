// Package agent wires the decision engine to its stores, platform client,
// scheduler and command surfaces, and runs it as a daemon.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/royhairul/auto-ads-shopee/internal/version"
	"github.com/royhairul/auto-ads-shopee/pkg/clock"
	"github.com/royhairul/auto-ads-shopee/pkg/config"
	"github.com/royhairul/auto-ads-shopee/pkg/engine"
	"github.com/royhairul/auto-ads-shopee/pkg/errlog"
	"github.com/royhairul/auto-ads-shopee/pkg/events"
	"github.com/royhairul/auto-ads-shopee/pkg/health"
	"github.com/royhairul/auto-ads-shopee/pkg/metrics"
	"github.com/royhairul/auto-ads-shopee/pkg/notify"
	"github.com/royhairul/auto-ads-shopee/pkg/scheduler"
	"github.com/royhairul/auto-ads-shopee/pkg/server"
	"github.com/royhairul/auto-ads-shopee/pkg/shopee"
	"github.com/royhairul/auto-ads-shopee/pkg/state"
	"github.com/royhairul/auto-ads-shopee/pkg/store"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger replaces the logger built from the logging config.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithDryRun keeps all state in memory and never writes to the platform.
func WithDryRun() Option {
	return func(m *Manager) { m.dryRun = true }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// Manager is the main agent manager
type Manager struct {
	mu     sync.RWMutex
	cfg    *config.Config
	logger *zap.Logger
	clock  clock.Clock
	dryRun bool

	closers       []func() error
	state         *state.State
	errors        *errlog.Book
	client        *shopee.Client
	metrics       *metrics.Prometheus
	notifier      *notify.Dispatcher
	broker        *events.Broker
	hub           *events.Hub
	webhook       *events.Webhook
	engine        *engine.Engine
	scheduler     *scheduler.Scheduler
	dispatcher    *Dispatcher
	healthMonitor *health.Monitor
	server        *server.Server
	coordinator   *Coordinator

	ctx         context.Context
	cancel      context.CancelFunc
	initialized bool
	running     bool
}

// NewManager creates a new agent manager
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		logger, err := initLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		m.logger = logger
	}

	if m.clock == nil {
		loc, err := time.LoadLocation(cfg.Agent.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Agent.Timezone, err)
		}
		m.clock = clock.Real{Location: loc}
	}

	return m, nil
}

// initLogger initializes the logger
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := cfg.Format
	if encoding != "console" {
		encoding = "json"
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	if cfg.File != "" {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, cfg.File)
	}

	return zapConfig.Build()
}

// Init builds every component without starting anything. One-shot CLI
// commands call it directly; Run calls it before starting.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	if err := m.initComponents(ctx); err != nil {
		m.closeStores()
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	m.initialized = true
	return nil
}

// initComponents initializes all agent components
func (m *Manager) initComponents(ctx context.Context) error {
	if err := m.initStores(ctx); err != nil {
		return err
	}

	m.errors = errlog.New(m.state.Local(), m.cfg.ErrorLog.MaxEntries, m.logger)
	m.metrics = metrics.NewPrometheus()

	m.client = shopee.NewClient(shopee.Config{
		SellerURL:     m.cfg.Shopee.SellerURL,
		AccountURL:    m.cfg.Shopee.AccountURL,
		CreatorURL:    m.cfg.Shopee.CreatorURL,
		Cookie:        m.cfg.Shopee.Cookie,
		CookieFile:    m.cfg.Shopee.CookieFile,
		SPCCDS:        m.cfg.Shopee.SPCCDS,
		UserAgent:     m.cfg.Shopee.UserAgent,
		Timeout:       m.cfg.Shopee.Timeout,
		CampaignLimit: m.cfg.Shopee.CampaignLimit,
		Retry: shopee.RetryPolicy{
			MaxRetries:   m.cfg.Shopee.Retry.MaxRetries,
			InitialDelay: m.cfg.Shopee.Retry.InitialDelay,
			MaxDelay:     m.cfg.Shopee.Retry.MaxDelay,
			Multiplier:   m.cfg.Shopee.Retry.Multiplier,
			Jitter:       0.1,
		},
		BreakerFailures: m.cfg.Shopee.Breaker.ConsecutiveFailures,
		BreakerTimeout:  m.cfg.Shopee.Breaker.OpenTimeout,
		Location:        m.clock.Now().Location(),
	}, m.logger, shopee.WithErrorRecorder(m.errors), shopee.WithNow(m.clock.Now))

	if err := m.initNotifier(); err != nil {
		return err
	}

	m.hub = events.NewHub(m.logger)
	m.broker = events.NewBroker(m.metrics, m.logger, m.hub)
	if m.cfg.Events.WebhookURL != "" {
		m.webhook = events.NewWebhook(events.WebhookConfig{
			URL:       m.cfg.Events.WebhookURL,
			Token:     m.cfg.Events.WebhookToken,
			QueueSize: m.cfg.Events.QueueSize,
			Timeout:   m.cfg.Events.Timeout,
		}, m.logger)
		m.broker.Subscribe(m.webhook)
	}

	var writer engine.BudgetWriter = m.client
	var statusSetter StatusSetter = m.client
	if m.dryRun {
		dry := &dryRunWriter{logger: m.logger.Named("dry-run")}
		writer, statusSetter = dry, dry
	}

	m.engine = engine.New(engine.Deps{
		Service:   m.client,
		Writer:    writer,
		Store:     m.state,
		Notifier:  m.notifier,
		Publisher: m.broker,
		Clock:     m.clock,
		Recorder:  m.metrics,
		Errors:    m.errors,
		Logger:    m.logger,
	})

	m.dispatcher = NewDispatcher(DispatcherDeps{
		Runner: m.engine,
		State:  m.state,
		Status: statusSetter,
		Clock:  m.clock,
		Guard:  m.errors,
		Logger: m.logger,
	})

	m.scheduler = scheduler.New(m.cfg.Scheduler.Interval, m.dispatcher.Tick, m.metrics, m.logger)
	m.engine.SetScheduler(m.scheduler)
	m.dispatcher.SetScheduler(m.scheduler)

	m.initHealth()

	if m.cfg.Server.Enabled {
		m.server = server.NewServer(server.Config{
			ListenAddr: m.cfg.Server.ListenAddr,
			Port:       m.cfg.Server.Port,
			Debug:      m.cfg.Server.Debug,
		}, server.Dependencies{
			Logger: m.logger,
			Auth: server.NewAuthenticator(server.AuthConfig{
				JWTSecret:     m.cfg.Server.JWTSecret,
				AllowedTokens: m.cfg.Server.Tokens,
			}),
			Handlers: server.NewHandlers(m.logger.Named("api"), m.dispatcher, m, m.state, m.errors, m.healthMonitor),
			Panics:   m.errors,
			Metrics:  m.metrics.Handler(),
			Events:   m.hub,
		})
	}

	m.coordinator = m.buildCoordinator()
	return nil
}

// initStores opens the local scope in SQLite and the synced scope in SQLite
// or Redis. Dry runs use memory for both.
func (m *Manager) initStores(ctx context.Context) error {
	if m.dryRun {
		m.state = state.New(store.NewMemory(), store.NewMemory())
		return nil
	}

	db, err := store.OpenSQLite(m.cfg.Store.Path)
	if err != nil {
		return err
	}
	m.closers = append(m.closers, db.Close)

	synced := db.Scope(store.ScopeSynced)
	if m.cfg.Store.Synced.Driver == "redis" {
		r, err := store.NewRedis(ctx, m.cfg.Store.Synced.RedisURL, m.cfg.Store.Synced.KeyPrefix, store.ScopeSynced)
		if err != nil {
			return err
		}
		m.closers = append(m.closers, r.Close)
		synced = r
	}

	m.state = state.New(db.Scope(store.ScopeLocal), synced)
	return nil
}

func (m *Manager) initNotifier() error {
	templates, err := notify.LoadTemplates(m.cfg.Notify.TemplatesDir)
	if err != nil {
		return fmt.Errorf("failed to load notification templates: %w", err)
	}

	m.notifier = notify.NewDispatcher(templates, m.logger, notify.NewLogSink(m.logger))

	if tg := m.cfg.Notify.Telegram; tg.Token != "" {
		sink, err := notify.NewTelegramSink(tg.Token, tg.ChatID, "")
		if err != nil {
			return err
		}
		m.notifier.AddSink(sink)
	}
	return nil
}

func (m *Manager) initHealth() {
	m.healthMonitor = health.NewMonitor(version.Version, m.cfg.Health.CheckInterval, m.logger)
	m.healthMonitor.SetObserver(m.metrics)
	m.healthMonitor.RegisterChecker(health.NewProcessChecker())
	m.healthMonitor.RegisterChecker(health.NewStoreChecker("store_local", m.state.Local().Ping))
	m.healthMonitor.RegisterChecker(health.NewStoreChecker("store_synced", m.state.Synced().Ping))
	m.healthMonitor.RegisterChecker(health.NewBreakerChecker(m.client.BreakerState))
	m.healthMonitor.RegisterChecker(health.NewSchedulerChecker(
		m.scheduler.Enabled,
		m.scheduler.LastTick,
		m.scheduler.Interval(),
	))
	if !m.dryRun {
		m.healthMonitor.RegisterChecker(health.NewDiskChecker(m.cfg.Agent.DataDir, m.cfg.Health.MinDiskSpace))
	}
}

// Run starts the agent and blocks until SIGINT or SIGTERM.
func (m *Manager) Run() error {
	if err := m.Start(context.Background()); err != nil {
		return err
	}
	m.waitForShutdown()
	return nil
}

// Start initializes and starts every component.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.Init(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("agent already running")
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.logger.Info("starting autoads",
		zap.String("version", version.Version),
		zap.Bool("dry_run", m.dryRun),
		zap.Duration("interval", m.cfg.Scheduler.Interval))

	if err := m.coordinator.StartAll(m.ctx); err != nil {
		m.Shutdown()
		return fmt.Errorf("failed to start components: %w", err)
	}

	m.logger.Info("all components started")
	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (m *Manager) waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-m.ctx.Done():
	}

	m.Shutdown()
}

// Shutdown performs graceful shutdown
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.logger.Info("shutting down agent")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m.coordinator.StopAll(ctx)
	m.cancel()
	m.Close()

	m.logger.Info("agent shutdown complete")
}

// Close releases the stores. Run and Shutdown call it; one-shot commands
// call it after Init.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.closeStores()
	_ = m.logger.Sync()
	return err
}

func (m *Manager) closeStores() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

// Dispatcher returns the command dispatcher. Valid after Init.
func (m *Manager) Dispatcher() *Dispatcher { return m.dispatcher }

// State returns the typed store. Valid after Init.
func (m *Manager) State() *state.State { return m.state }

// Errors returns the error log. Valid after Init.
func (m *Manager) Errors() *errlog.Book { return m.errors }

// Client returns the platform client. Valid after Init.
func (m *Manager) Client() *shopee.Client { return m.client }

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config { return m.cfg }

// Logger returns the manager's logger.
func (m *Manager) Logger() *zap.Logger { return m.logger }

// HealthCheck returns the current health status
func (m *Manager) HealthCheck() *health.Status {
	if m.healthMonitor == nil {
		return &health.Status{
			Overall: health.StatusUnknown,
		}
	}
	return m.healthMonitor.GetStatus()
}

// dryRunWriter logs platform writes instead of sending them.
type dryRunWriter struct {
	logger *zap.Logger
}

func (w *dryRunWriter) SetDailyBudget(_ context.Context, campaignID int64, major decimal.Decimal) (shopee.Result, error) {
	w.logger.Info("would set daily budget",
		zap.Int64("campaign_id", campaignID),
		zap.String("budget", shopee.FormatRupiah(major)))
	return shopee.Result{}, nil
}

func (w *dryRunWriter) SetCampaignStatus(_ context.Context, campaignID int64, action shopee.StatusAction) (shopee.Result, error) {
	w.logger.Info("would change campaign status",
		zap.Int64("campaign_id", campaignID),
		zap.String("action", string(action)))
	return shopee.Result{}, nil
}
