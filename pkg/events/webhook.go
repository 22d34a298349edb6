package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/internal/version"
)

// WebhookConfig contains webhook sink configuration
type WebhookConfig struct {
	URL       string
	Token     string
	QueueSize int
	Timeout   time.Duration
}

// Webhook posts events to an HTTP endpoint from a background queue.
type Webhook struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
	queue      chan Event
	wg         sync.WaitGroup
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewWebhook creates a webhook sink. Call Start to begin delivery.
func NewWebhook(cfg WebhookConfig, logger *zap.Logger) *Webhook {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Webhook{
		url:   cfg.URL,
		token: cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("webhook"),
		queue:  make(chan Event, queueSize),
		stopCh: make(chan struct{}),
	}
}

func (w *Webhook) Name() string { return "webhook" }

// Start starts the delivery loop
func (w *Webhook) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.processQueue(ctx)
}

// Stop flushes queued events and stops the delivery loop
func (w *Webhook) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Deliver queues the event, dropping it when the queue is full.
func (w *Webhook) Deliver(e Event) bool {
	select {
	case w.queue <- e:
		return true
	default:
		return false
	}
}

func (w *Webhook) processQueue(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.flushQueue()
			return
		case <-w.stopCh:
			w.flushQueue()
			return
		case e := <-w.queue:
			if err := w.send(ctx, e); err != nil {
				w.logger.Warn("failed to deliver event",
					zap.String("event_id", e.ID),
					zap.String("type", string(e.Type)),
					zap.Error(err))
			}
		}
	}
}

func (w *Webhook) flushQueue() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for {
		select {
		case e := <-w.queue:
			if err := w.send(ctx, e); err != nil {
				w.logger.Warn("failed to deliver event during flush",
					zap.String("event_id", e.ID),
					zap.Error(err))
			}
		default:
			return
		}
	}
}

func (w *Webhook) send(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Event-Type", string(e.Type))
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("event rejected with status %d", resp.StatusCode)
	}
	return nil
}
