package shopee

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	pathAccountInfo = "/api/v4/account/basic/get_account_info"
	pathAdsData     = "/api/pas/v1/meta/get_ads_data/"
	pathHomepage    = "/api/pas/v1/homepage/query/"
	pathBudgetData  = "/api/pas/v1/setup_helper/get_budget_data_for_edit/"
	pathSessionList = "/supply/api/lm/sellercenter/realtime/sessionList"

	liveDashboardURL = "https://creator.shopee.co.id/dashboard/live/"
)

// GetProfile fetches the logged-in account. A missing data object means the
// session is not logged in.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var env envelope
	u := strings.TrimRight(c.cfg.AccountURL, "/") + pathAccountInfo
	if err := c.call(ctx, "getProfile", http.MethodGet, u, nil, &env); err != nil {
		return nil, err
	}
	if isNull(env.Data) {
		return nil, fmt.Errorf("getProfile: %w", ErrUnauthorized)
	}

	var p Profile
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, fmt.Errorf("getProfile: failed to decode profile: %w", err)
	}
	return &p, nil
}

type adsDataResponse struct {
	AdsExpense struct {
		AdsExpenseToday int64 `json:"ads_expense_today"`
	} `json:"ads_expense"`
	AdsCredit struct {
		AppDetail struct {
			LiveAvailableBalance int64 `json:"live_available_balance"`
		} `json:"app_detail"`
	} `json:"ads_credit"`
}

// GetAccountBalanceAndSpend fetches the live ads balance and today's spend.
func (c *Client) GetAccountBalanceAndSpend(ctx context.Context) (*AccountSummary, error) {
	body := map[string]any{
		"info_type_list": []string{"ads_expense", "ads_account", "ads_credit", "campaign_day"},
	}

	var env envelope
	if err := c.call(ctx, "getAccountBalanceAndSpend", http.MethodPost, c.sellerURL(pathAdsData), body, &env); err != nil {
		return nil, err
	}
	if isNull(env.Data) {
		return nil, &APIError{Op: "getAccountBalanceAndSpend", Code: env.Code, Msg: orDefault(env.Msg, "no data")}
	}

	var data adsDataResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("getAccountBalanceAndSpend: failed to decode: %w", err)
	}
	return &AccountSummary{
		AccountBalance: data.AdsCredit.AppDetail.LiveAvailableBalance,
		ExpenseToday:   data.AdsExpense.AdsExpenseToday,
	}, nil
}

type homepageEntry struct {
	Campaign struct {
		CampaignID  int64 `json:"campaign_id"`
		DailyBudget int64 `json:"daily_budget"`
	} `json:"campaign"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Report struct {
		BroadGMV  int64 `json:"broad_gmv"`
		DirectGMV int64 `json:"direct_gmv"`
		Cost      int64 `json:"cost"`
	} `json:"report"`
}

type homepageResponse struct {
	EntryList []homepageEntry `json:"entry_list"`
}

// GetCampaignList fetches today's live-stream campaigns in the given state.
// Spend for ongoing campaigns is refreshed from the budget endpoint, which
// lags less than the homepage report.
func (c *Client) GetCampaignList(ctx context.Context, state CampaignState) ([]Campaign, error) {
	if state == "" {
		state = StateOngoing
	}

	start, end := dayBounds(c.now().In(c.cfg.Location))
	body := map[string]any{
		"start_time": start.Unix(),
		"end_time":   end.Unix(),
		"filter_list": []map[string]any{{
			"campaign_type":        "live_stream_homepage",
			"state":                state,
			"search_term":          "",
			"is_valid_rebate_only": false,
		}},
		"offset": 0,
		"limit":  c.cfg.CampaignLimit,
	}

	var env envelope
	if err := c.call(ctx, "getCampaignList", http.MethodPost, c.sellerURL(pathHomepage), body, &env); err != nil {
		return nil, err
	}
	if env.Code != 0 {
		return nil, &APIError{Op: "getCampaignList", Code: env.Code, Msg: env.Msg}
	}

	var data homepageResponse
	if !isNull(env.Data) {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("getCampaignList: failed to decode: %w", err)
		}
	}

	campaigns := make([]Campaign, 0, len(data.EntryList))
	for _, e := range data.EntryList {
		campaigns = append(campaigns, toCampaign(e))
	}

	c.refreshOngoingSpend(ctx, campaigns)
	return campaigns, nil
}

func toCampaign(e homepageEntry) Campaign {
	c := Campaign{
		ID:          e.Campaign.CampaignID,
		Title:       orDefault(e.Title, "Untitled Campaign"),
		State:       CampaignState(orDefault(e.State, string(StatePaused))),
		Spent:       e.Report.Cost,
		DailyBudget: e.Campaign.DailyBudget,
		BroadGMV:    e.Report.BroadGMV,
		DirectGMV:   e.Report.DirectGMV,
	}
	if e.Report.Cost > 0 {
		roas := float64(e.Report.BroadGMV) / float64(e.Report.Cost)
		c.ROAS = &roas
	}
	return c
}

// refreshOngoingSpend replaces Spent with previous_expense for ongoing
// campaigns. Lookups run concurrently; a failed lookup keeps the report cost.
func (c *Client) refreshOngoingSpend(ctx context.Context, campaigns []Campaign) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i := range campaigns {
		if campaigns[i].State != StateOngoing {
			continue
		}
		i := i
		g.Go(func() error {
			limits, err := c.GetBudgetData(gctx, campaigns[i].ID)
			if err != nil || limits == nil {
				return nil
			}
			campaigns[i].Spent = limits.PreviousExpense
			return nil
		})
	}
	_ = g.Wait()
}

type budgetDataResponse struct {
	DailyBudget *struct {
		BudgetLogKey string `json:"budget_log_key"`
		CPS          *struct {
			MinBudget *int64 `json:"min_budget"`
		} `json:"cps"`
		IsAllowDecrease *bool  `json:"is_allow_decrease"`
		LowThreshold    *int64 `json:"low_threshold"`
		Max             int64  `json:"max"`
		Min             int64  `json:"min"`
		Multiple        int64  `json:"multiple"`
		PreviousExpense int64  `json:"previous_expense"`
		Recommended     int64  `json:"recommended"`
	} `json:"daily_budget"`
}

// GetBudgetData fetches the budget envelope for one campaign. It returns nil
// without error when the platform has no budget data for it.
func (c *Client) GetBudgetData(ctx context.Context, campaignID int64) (*BudgetLimits, error) {
	body := map[string]any{
		"reference_id":     uuid.NewString(),
		"campaign_id_list": []int64{campaignID},
	}

	var env envelope
	if err := c.call(ctx, "getBudgetData", http.MethodPost, c.sellerURL(pathBudgetData), body, &env); err != nil {
		return nil, err
	}
	if isNull(env.Data) {
		return nil, nil
	}

	var data budgetDataResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("getBudgetData: failed to decode: %w", err)
	}
	d := data.DailyBudget
	if d == nil {
		return nil, nil
	}

	limits := &BudgetLimits{
		BudgetLogKey:    d.BudgetLogKey,
		IsAllowDecrease: d.IsAllowDecrease,
		LowThreshold:    d.LowThreshold,
		Max:             d.Max,
		Min:             d.Min,
		Multiple:        d.Multiple,
		PreviousExpense: d.PreviousExpense,
		Recommended:     d.Recommended,
	}
	if d.CPS != nil {
		limits.CPSMinBudget = d.CPS.MinBudget
	}
	return limits, nil
}

// GetCampaignMinimumBudget returns the campaign's budget envelope when the
// platform reports a minimum, or nil when it does not.
func (c *Client) GetCampaignMinimumBudget(ctx context.Context, campaignID int64) (*BudgetLimits, error) {
	limits, err := c.GetBudgetData(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if limits == nil || limits.Min <= 0 {
		return nil, nil
	}
	return limits, nil
}

type sessionListResponse struct {
	List []struct {
		SessionID   int64  `json:"sessionId"`
		Title       string `json:"title"`
		Status      int    `json:"status"`
		PlacedSales int64  `json:"placedSales"`
		Viewers     int64  `json:"viewers"`
	} `json:"list"`
}

// GetActiveLiveSessions returns broadcasts that are currently live. Failures
// are logged and reported as no sessions.
func (c *Client) GetActiveLiveSessions(ctx context.Context) ([]LiveSession, error) {
	q := "?page=1&pageSize=10&name=&orderBy=&sort="
	u := strings.TrimRight(c.cfg.CreatorURL, "/") + pathSessionList + q

	var env envelope
	if err := c.call(ctx, "getActiveLiveSessions", http.MethodGet, u, nil, &env); err != nil {
		return []LiveSession{}, nil
	}

	var data sessionListResponse
	if !isNull(env.Data) {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			c.logger.Warn("failed to decode live sessions", zap.Error(err))
			return []LiveSession{}, nil
		}
	}

	sessions := make([]LiveSession, 0, len(data.List))
	for _, l := range data.List {
		if l.Status != 1 {
			continue
		}
		sessions = append(sessions, LiveSession{
			SessionID: l.SessionID,
			Title:     l.Title,
			Status:    l.Status,
			Link:      liveDashboardURL + strconv.FormatInt(l.SessionID, 10),
			GMV:       l.PlacedSales,
			Views:     l.Viewers,
		})
	}
	return sessions, nil
}

// dayBounds returns local midnight and 23:59:59 of t's day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	end := time.Date(y, m, d, 23, 59, 59, 0, t.Location())
	return start, end
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
