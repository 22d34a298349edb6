package shopee

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const pathLiveStreamEdit = "/api/pas/v1/live_stream/edit/"

// SetDailyBudget sets a campaign's daily budget, given in rupiah.
func (c *Client) SetDailyBudget(ctx context.Context, campaignID int64, major decimal.Decimal) (Result, error) {
	body := map[string]any{
		"campaign_id": campaignID,
		"type":        "change_budget",
		"change_budget": map[string]any{
			"page":           "page_homepage",
			"daily_budget":   FromMajor(major),
			"budget_log_key": "",
		},
	}

	res, err := c.edit(ctx, "setDailyBudget", body)
	if err != nil {
		return res, err
	}
	c.logger.Debug("daily budget written",
		zap.Int64("campaign_id", campaignID),
		zap.String("budget", major.String()),
		zap.Int("code", res.Code))
	return res, nil
}

// SetCampaignStatus resumes, pauses or stops a campaign.
func (c *Client) SetCampaignStatus(ctx context.Context, campaignID int64, action StatusAction) (Result, error) {
	if _, err := ParseStatusAction(string(action)); err != nil {
		return Result{}, err
	}
	body := map[string]any{
		"campaign_id": campaignID,
		"type":        action,
		"header":      map[string]any{},
	}
	return c.edit(ctx, "setCampaignStatus", body)
}

func (c *Client) edit(ctx context.Context, op string, body any) (Result, error) {
	var res Result
	u := c.sellerURL(pathLiveStreamEdit)
	err := c.do(ctx, http.MethodPost, u, body, &res)
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.Error(err))
		if c.recorder != nil {
			c.recorder.Record(ctx, err, map[string]any{"function": op, "url": u})
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
