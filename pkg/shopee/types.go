package shopee

import "fmt"

// CampaignState is the lifecycle state of an ad campaign.
type CampaignState string

const (
	StateOngoing CampaignState = "ongoing"
	StatePaused  CampaignState = "paused"
	StateEnded   CampaignState = "ended"
)

// StatusAction is a campaign status transition accepted by the platform.
type StatusAction string

const (
	ActionResume StatusAction = "resume"
	ActionPause  StatusAction = "pause"
	ActionStop   StatusAction = "stop"
)

// ParseStatusAction validates an action name.
func ParseStatusAction(s string) (StatusAction, error) {
	switch a := StatusAction(s); a {
	case ActionResume, ActionPause, ActionStop:
		return a, nil
	}
	return "", fmt.Errorf("unknown campaign action %q", s)
}

// Profile is the logged-in account.
type Profile struct {
	UserID   int64  `json:"userid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Portrait string `json:"portrait"`
	ShopID   int64  `json:"shopid"`
	Phone    string `json:"phone"`
	Nickname string `json:"nickname"`
	IsSeller bool   `json:"is_seller"`
}

// AccountSummary is the ad account's balance and today's spend, both scaled.
type AccountSummary struct {
	AccountBalance int64 `json:"accountBalance"`
	ExpenseToday   int64 `json:"expenseToday"`
}

// Campaign is a per-cycle snapshot of a live-stream ad campaign. Spent and
// DailyBudget are platform-scaled.
type Campaign struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	State       CampaignState `json:"state"`
	Spent       int64         `json:"spent"`
	DailyBudget int64         `json:"daily_budget"`
	BroadGMV    int64         `json:"broad_gmv"`
	DirectGMV   int64         `json:"direct_gmv"`
	// ROAS is nil when the campaign has no recorded cost.
	ROAS *float64 `json:"roas,omitempty"`
}

// Percent returns spend as a percentage of the daily budget, or 0 for a zero
// budget.
func (c Campaign) Percent() float64 {
	if c.DailyBudget <= 0 {
		return 0
	}
	return float64(c.Spent) / float64(c.DailyBudget) * 100
}

// BudgetLimits is the platform's budget envelope for one campaign, scaled.
type BudgetLimits struct {
	BudgetLogKey    string `json:"budget_log_key"`
	CPSMinBudget    *int64 `json:"cps,omitempty"`
	IsAllowDecrease *bool  `json:"is_allow_decrease,omitempty"`
	LowThreshold    *int64 `json:"low_threshold,omitempty"`
	Max             int64  `json:"max"`
	Min             int64  `json:"min"`
	Multiple        int64  `json:"multiple"`
	PreviousExpense int64  `json:"previous_expense"`
	Recommended     int64  `json:"recommended"`
}

// LiveSession is a running live broadcast.
type LiveSession struct {
	SessionID int64  `json:"sessionId"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Link      string `json:"link"`
	GMV       int64  `json:"gmv"`
	Views     int64  `json:"view"`
}

// Result is the platform's reply to a write; Code 0 means success.
type Result struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// OK reports whether the write was accepted.
func (r Result) OK() bool { return r.Code == 0 }
