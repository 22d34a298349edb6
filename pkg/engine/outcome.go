package engine

import "github.com/royhairul/auto-ads-shopee/pkg/events"

// Outcome tags how a cycle ended.
type Outcome string

const (
	OutcomeInactive            Outcome = "inactive"
	OutcomeBalanceUnavailable  Outcome = "balance_unavailable"
	OutcomeInsufficientBalance Outcome = "insufficient_balance"
	OutcomeNoLiveSession       Outcome = "no_live_session"
	OutcomeProfileInvalid      Outcome = "profile_invalid"
	OutcomeNoCampaigns         Outcome = "no_campaigns"
	OutcomeCompleted           Outcome = "completed"
	OutcomeFailed              Outcome = "failed"
)

// CycleResult reports what a cycle did. Err carries the failure behind a
// short-circuit outcome, if any.
type CycleResult struct {
	Outcome  Outcome                 `json:"outcome"`
	Updated  []events.CampaignUpdate `json:"updated"`
	Alerts   int                     `json:"alerts"`
	ResetRan bool                    `json:"resetRan"`
	Err      error                   `json:"-"`
}

// ResetResult reports a daily reset. Aborted names the reason when nothing
// was attempted.
type ResetResult struct {
	Aborted string  `json:"aborted,omitempty"`
	Reset   []int64 `json:"reset"`
	Skipped []int64 `json:"skipped"`
	Failed  []int64 `json:"failed"`
}

// Reset abort reasons.
const (
	AbortProfileInvalid = "profile_invalid"
	AbortNoCampaigns    = "no_campaigns"
)
