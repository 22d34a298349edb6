package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/shopee"
)

// RunDailyReset sets every ongoing campaign back to the platform minimum and
// clears the per-day notification state. Each campaign is handled
// independently; one failing does not stop the rest.
func (e *Engine) RunDailyReset(ctx context.Context) ResetResult {
	var res ResetResult

	profile, err := e.svc.GetProfile(ctx)
	if err != nil || profile == nil || !profile.IsSeller {
		e.logger.Warn("daily reset skipped: no active seller account", zap.Error(err))
		res.Aborted = AbortProfileInvalid
		return res
	}

	campaigns, err := e.svc.GetCampaignList(ctx, shopee.StateOngoing)
	if err != nil || len(campaigns) == 0 {
		e.logger.Info("daily reset skipped: no campaigns", zap.Error(err))
		res.Aborted = AbortNoCampaigns
		return res
	}

	e.logger.Info("daily reset: restoring minimum budgets", zap.Int("campaigns", len(campaigns)))

	for _, c := range campaigns {
		status := e.resetCampaign(ctx, c)
		e.recorder.IncResetCampaign(status)
		switch status {
		case "success":
			res.Reset = append(res.Reset, c.ID)
		case "skipped":
			res.Skipped = append(res.Skipped, c.ID)
		default:
			res.Failed = append(res.Failed, c.ID)
		}
	}

	if err := e.store.ClearDailyBookkeeping(ctx); err != nil {
		e.recordError(ctx, err, map[string]any{"op": "dailyReset"})
	}

	e.logger.Info("daily reset finished",
		zap.Int("reset", len(res.Reset)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failed", len(res.Failed)))
	return res
}

// resetCampaign returns one of "success", "skipped" or "failed".
func (e *Engine) resetCampaign(ctx context.Context, c shopee.Campaign) (status string) {
	log := e.logger.With(zap.Int64("campaign_id", c.ID), zap.String("title", c.Title))
	defer func() {
		if r := recover(); r != nil {
			log.Error("daily reset panicked", zap.Any("panic", r))
			e.errors.RecordPanic(ctx, r, debug.Stack(), map[string]any{"op": "dailyReset", "campaignId": c.ID})
			status = "failed"
		}
	}()

	limits, err := e.svc.GetCampaignMinimumBudget(ctx, c.ID)
	if err != nil || limits == nil || limits.Min <= 0 {
		log.Warn("no minimum budget, skipping", zap.Error(err))
		return "skipped"
	}

	result, err := e.writer.SetDailyBudget(ctx, c.ID, shopee.ToMajor(limits.Min))
	if err != nil {
		log.Error("daily reset failed", zap.Error(err))
		e.recordError(ctx, err, map[string]any{"op": "dailyReset", "campaignId": c.ID})
		return "failed"
	}
	if !result.OK() {
		log.Error("daily reset rejected", zap.Int("code", result.Code), zap.String("msg", result.Msg))
		e.recordError(ctx,
			fmt.Errorf("%w: code %d: %s", ErrBudgetRejected, result.Code, result.Msg),
			map[string]any{"op": "dailyReset", "campaignId": c.ID})
		return "failed"
	}

	log.Info("budget reset to minimum", zap.String("budget", shopee.FormatScaled(limits.Min)))
	return "success"
}
