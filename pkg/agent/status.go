package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/internal/version"
	"github.com/royhairul/auto-ads-shopee/pkg/api"
)

const liveLookupTimeout = 5 * time.Second

// Status builds the snapshot served by the status endpoint and CLI. Live
// sessions are looked up best effort; a failed lookup leaves them empty.
func (m *Manager) Status(ctx context.Context) (api.Status, error) {
	flags, err := m.state.Flags(ctx)
	if err != nil {
		return api.Status{}, err
	}
	s, err := m.state.LoadSettings(ctx)
	if err != nil {
		return api.Status{}, err
	}
	count, err := m.errors.Count(ctx)
	if err != nil {
		return api.Status{}, err
	}

	st := api.Status{
		Version:          version.Version,
		ExtensionActive:  flags.ExtensionActive,
		LastActiveDate:   flags.LastActiveDate,
		FirstInstallDone: flags.FirstInstallDone,
		Scheduler: api.SchedulerStatus{
			Enabled:  m.scheduler.Enabled(),
			Interval: m.scheduler.Interval().String(),
			Ticks:    m.scheduler.Ticks(),
		},
		Breaker:    m.client.BreakerState(),
		Settings:   s,
		LastCycle:  m.dispatcher.LastCycle(),
		ErrorCount: count,
		Components: m.coordinator.GetAllStates(),
	}
	if last := m.scheduler.LastTick(); !last.IsZero() {
		st.Scheduler.LastTick = &last
	}

	if !m.client.BreakerOpen() {
		liveCtx, cancel := context.WithTimeout(ctx, liveLookupTimeout)
		defer cancel()
		sessions, err := m.client.GetActiveLiveSessions(liveCtx)
		if err != nil {
			m.logger.Debug("live session lookup failed", zap.Error(err))
		}
		st.LiveSessions = sessions
	}

	return st, nil
}
