// Package metrics provides instrumentation hooks for the decision engine and
// its collaborators.
package metrics

import "time"

// Recorder captures metric events.
type Recorder interface {
	ObserveCycle(outcome string, duration time.Duration)
	IncBudgetRaise(result string) // result: "success", "rejected", "error"
	IncNotification(kind string)
	IncResetCampaign(result string) // result: "success", "skipped", "failed"
	IncEventPublished(status string) // status: "success" or "dropped"
	SetSchedulerEnabled(enabled bool)
}
