package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveCycle(string, time.Duration) {}
func (n *NoopRecorder) IncBudgetRaise(string)             {}
func (n *NoopRecorder) IncNotification(string)            {}
func (n *NoopRecorder) IncResetCampaign(string)           {}
func (n *NoopRecorder) IncEventPublished(string)          {}
func (n *NoopRecorder) SetSchedulerEnabled(bool)          {}
