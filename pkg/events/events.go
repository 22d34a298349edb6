// Package events broadcasts engine outcomes to WebSocket clients and an
// optional webhook. Delivery is fire-and-forget.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/metrics"
)

// Type names an outbound event.
type Type string

const (
	TypeCampaignUpdated  Type = "CAMPAIGN_UPDATED"
	TypeCampaignsRefresh Type = "CAMPAIGNS_REFRESH"
)

// Event is the envelope sent to every subscriber.
type Event struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Payload any       `json:"payload"`
	Time    time.Time `json:"time"`
}

// New stamps an event with an id and the current time.
func New(t Type, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    t,
		Payload: payload,
		Time:    time.Now(),
	}
}

// CampaignUpdate is the payload of CAMPAIGN_UPDATED and one element of
// CAMPAIGNS_REFRESH. NewBudget is in rupiah.
type CampaignUpdate struct {
	ID        int64   `json:"id"`
	NewBudget float64 `json:"newBudget"`
	Title     string  `json:"title"`
	Percent   float64 `json:"percent"`
}

// Subscriber receives events without blocking the publisher. Deliver
// reports false when the event was dropped.
type Subscriber interface {
	Name() string
	Deliver(e Event) bool
}

// Broker fans events out to subscribers.
type Broker struct {
	subscribers []Subscriber
	recorder    metrics.Recorder
	logger      *zap.Logger
}

// NewBroker creates a broker. Subscribers may be added later.
func NewBroker(recorder metrics.Recorder, logger *zap.Logger, subs ...Subscriber) *Broker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Broker{
		subscribers: subs,
		recorder:    recorder,
		logger:      logger.Named("events"),
	}
}

// Subscribe adds a subscriber. Not safe to call concurrently with Publish.
func (b *Broker) Subscribe(s Subscriber) {
	b.subscribers = append(b.subscribers, s)
}

// Publish delivers the event to every subscriber. It never blocks and
// succeeds with no subscribers.
func (b *Broker) Publish(_ context.Context, e Event) {
	for _, s := range b.subscribers {
		if s.Deliver(e) {
			b.recorder.IncEventPublished("success")
			continue
		}
		b.recorder.IncEventPublished("dropped")
		b.logger.Warn("event dropped",
			zap.String("subscriber", s.Name()),
			zap.String("type", string(e.Type)),
			zap.String("event_id", e.ID))
	}
	b.logger.Debug("event published",
		zap.String("type", string(e.Type)),
		zap.String("event_id", e.ID))
}
