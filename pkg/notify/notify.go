// Package notify renders user-facing alerts and delivers them to the
// configured sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind groups notifications for delivery and metrics.
type Kind string

const (
	KindLowEffectiveness Kind = "low_effectiveness"
	KindBudgetRaised     Kind = "budget_raised"
)

// Template names. A raise uses the threshold or interval wording.
const (
	TemplateLowEffectiveness = "low_effectiveness"
	TemplateBudgetThreshold  = "budget_threshold"
	TemplateBudgetInterval   = "budget_interval"
)

// Titles shown with each template.
const (
	TitleLowEffectiveness = "Low ad effectiveness"
	TitleBudgetThreshold  = "Budget threshold reached"
	TitleBudgetInterval   = "Interval-based update"
)

// Alert is a request to notify the user. Vars feed the message template.
type Alert struct {
	Kind       Kind
	Template   string
	Title      string
	CampaignID int64
	Vars       map[string]any
}

// Notification is a rendered alert ready for delivery.
type Notification struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	CampaignID int64     `json:"campaignId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Sink delivers notifications to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Dispatcher renders alerts and fans them out to every sink.
type Dispatcher struct {
	templates *Templates
	sinks     []Sink
	logger    *zap.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(templates *Templates, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		templates: templates,
		sinks:     sinks,
		logger:    logger.Named("notify"),
		now:       time.Now,
	}
}

// AddSink registers another destination.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Notify renders the alert and sends it to all sinks. A failing sink does
// not stop delivery to the others; their errors are joined.
func (d *Dispatcher) Notify(ctx context.Context, a Alert) error {
	msg, err := d.templates.Render(a.Template, a.Vars)
	if err != nil {
		return fmt.Errorf("failed to render %s notification: %w", a.Kind, err)
	}

	n := Notification{
		ID:         uuid.NewString(),
		Kind:       a.Kind,
		Title:      a.Title,
		Message:    msg,
		CampaignID: a.CampaignID,
		CreatedAt:  d.now(),
	}

	var errs []error
	for _, s := range d.sinks {
		if err := s.Send(ctx, n); err != nil {
			d.logger.Warn("notification sink failed",
				zap.String("sink", s.Name()),
				zap.String("kind", string(n.Kind)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notification")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, n Notification) error {
	s.logger.Info(n.Title,
		zap.String("id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.Int64("campaign_id", n.CampaignID),
		zap.String("message", n.Message))
	return nil
}
