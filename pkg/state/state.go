// Package state gives typed access to the settings and bookkeeping kept in
// the local and synced store scopes.
package state

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/royhairul/auto-ads-shopee/pkg/settings"
	"github.com/royhairul/auto-ads-shopee/pkg/store"
)

// Local scope keys.
const (
	KeyNotifiedCampaigns = "notifiedCampaigns"
	KeyUpdatedCampaigns  = "updatedCampaignsMap"
	KeyLastBudgets       = "lastBudgets"
	KeyLastActiveDate    = "lastActiveDate"
	KeyExtensionActive   = "extensionActive"
	KeyFirstInstallDone  = "firstInstallDone"
)

// Flags are the agent-level switches kept in the local scope.
type Flags struct {
	ExtensionActive  bool   `json:"extensionActive"`
	LastActiveDate   string `json:"lastActiveDate"`
	FirstInstallDone bool   `json:"firstInstallDone"`
}

// Bookkeeping holds per-campaign stamps keyed by campaign ID.
type Bookkeeping struct {
	// Notified is the epoch ms of the last notification per campaign.
	Notified map[int64]int64 `json:"notifiedCampaigns"`
	// Updated is the epoch ms of the last successful raise per campaign.
	Updated map[int64]int64 `json:"updatedCampaignsMap"`
	// LastBudgets is the daily budget in rupiah last written per campaign.
	LastBudgets map[int64]decimal.Decimal `json:"lastBudgets"`
}

// NewBookkeeping returns empty bookkeeping.
func NewBookkeeping() *Bookkeeping {
	return &Bookkeeping{
		Notified:    map[int64]int64{},
		Updated:     map[int64]int64{},
		LastBudgets: map[int64]decimal.Decimal{},
	}
}

// State reads and writes typed values over the two store scopes.
type State struct {
	local  store.Store
	synced store.Store
}

// New creates a State over the given scopes.
func New(local, synced store.Store) *State {
	return &State{local: local, synced: synced}
}

// Local returns the device-local store.
func (s *State) Local() store.Store { return s.local }

// Synced returns the account-synced store.
func (s *State) Synced() store.Store { return s.synced }

// LoadSettings reads the settings, applying defaults for absent keys.
func (s *State) LoadSettings(ctx context.Context) (settings.Settings, error) {
	def := settings.Defaults()

	vals, err := s.synced.Get(ctx, settings.Keys...)
	if err != nil {
		return def, fmt.Errorf("failed to read settings: %w", err)
	}

	var out settings.Settings
	if out.Mode, err = store.Decode(vals, settings.KeyMode, def.Mode); err != nil {
		return def, err
	}
	if out.BudgetThreshold, err = store.Decode(vals, settings.KeyBudgetThreshold, def.BudgetThreshold); err != nil {
		return def, err
	}
	if out.UpdateInterval, err = store.Decode(vals, settings.KeyUpdateInterval, def.UpdateInterval); err != nil {
		return def, err
	}
	if out.DailyBudget, err = store.Decode(vals, settings.KeyDailyBudget, def.DailyBudget); err != nil {
		return def, err
	}
	if out.NotificationCooldown, err = store.Decode(vals, settings.KeyNotificationCooldown, def.NotificationCooldown); err != nil {
		return def, err
	}
	if out.NotificationEnabled, err = store.Decode(vals, settings.KeyNotificationEnabled, def.NotificationEnabled); err != nil {
		return def, err
	}
	if out.EffectivenessThreshold, err = store.Decode(vals, settings.KeyEffectivenessThreshold, def.EffectivenessThreshold); err != nil {
		return def, err
	}
	if out.LastUpdateTime, err = store.Decode(vals, settings.KeyLastUpdateTime, def.LastUpdateTime); err != nil {
		return def, err
	}
	return out, nil
}

// SaveSettings validates and persists every settings key in one write.
func (s *State) SaveSettings(ctx context.Context, v settings.Settings) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if err := s.synced.Set(ctx, v.Items()); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// UpdateSettings merges a patch onto the stored settings and saves the result.
func (s *State) UpdateSettings(ctx context.Context, p settings.Patch) (settings.Settings, error) {
	current, err := s.LoadSettings(ctx)
	if err != nil {
		return current, err
	}
	next := p.Apply(current)
	if err := s.SaveSettings(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

// SetLastUpdateTime persists the global time-mode stamp.
func (s *State) SetLastUpdateTime(ctx context.Context, ms int64) error {
	if err := s.synced.Set(ctx, map[string]any{settings.KeyLastUpdateTime: ms}); err != nil {
		return fmt.Errorf("failed to save lastUpdateTime: %w", err)
	}
	return nil
}

// Flags reads the agent switches. extensionActive defaults to true.
func (s *State) Flags(ctx context.Context) (Flags, error) {
	vals, err := s.local.Get(ctx, KeyExtensionActive, KeyLastActiveDate, KeyFirstInstallDone)
	if err != nil {
		return Flags{ExtensionActive: true}, fmt.Errorf("failed to read flags: %w", err)
	}

	var f Flags
	if f.ExtensionActive, err = store.Decode(vals, KeyExtensionActive, true); err != nil {
		return f, err
	}
	if f.LastActiveDate, err = store.Decode(vals, KeyLastActiveDate, ""); err != nil {
		return f, err
	}
	if f.FirstInstallDone, err = store.Decode(vals, KeyFirstInstallDone, false); err != nil {
		return f, err
	}
	return f, nil
}

// SetExtensionActive persists the master run switch.
func (s *State) SetExtensionActive(ctx context.Context, active bool) error {
	if err := s.local.Set(ctx, map[string]any{KeyExtensionActive: active}); err != nil {
		return fmt.Errorf("failed to save extensionActive: %w", err)
	}
	return nil
}

// SetLastActiveDate records the day the reset last ran.
func (s *State) SetLastActiveDate(ctx context.Context, date string) error {
	if err := s.local.Set(ctx, map[string]any{KeyLastActiveDate: date}); err != nil {
		return fmt.Errorf("failed to save lastActiveDate: %w", err)
	}
	return nil
}

// PrimeInstall marks install complete and stamps today so no reset fires
// on the first cycle.
func (s *State) PrimeInstall(ctx context.Context, today string) error {
	err := s.local.Set(ctx, map[string]any{
		KeyLastActiveDate:   today,
		KeyFirstInstallDone: true,
	})
	if err != nil {
		return fmt.Errorf("failed to prime install state: %w", err)
	}
	return nil
}

// LoadBookkeeping reads all per-campaign stamps.
func (s *State) LoadBookkeeping(ctx context.Context) (*Bookkeeping, error) {
	vals, err := s.local.Get(ctx, KeyNotifiedCampaigns, KeyUpdatedCampaigns, KeyLastBudgets)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookkeeping: %w", err)
	}

	b := NewBookkeeping()
	if b.Notified, err = store.Decode(vals, KeyNotifiedCampaigns, b.Notified); err != nil {
		return nil, err
	}
	if b.Updated, err = store.Decode(vals, KeyUpdatedCampaigns, b.Updated); err != nil {
		return nil, err
	}
	if b.LastBudgets, err = store.Decode(vals, KeyLastBudgets, b.LastBudgets); err != nil {
		return nil, err
	}
	// A stored JSON null decodes to a nil map.
	if b.Notified == nil {
		b.Notified = map[int64]int64{}
	}
	if b.Updated == nil {
		b.Updated = map[int64]int64{}
	}
	if b.LastBudgets == nil {
		b.LastBudgets = map[int64]decimal.Decimal{}
	}
	return b, nil
}

// SaveBookkeeping writes all three maps in a single batched write.
func (s *State) SaveBookkeeping(ctx context.Context, b *Bookkeeping) error {
	err := s.local.Set(ctx, map[string]any{
		KeyNotifiedCampaigns: b.Notified,
		KeyUpdatedCampaigns:  b.Updated,
		KeyLastBudgets:       b.LastBudgets,
	})
	if err != nil {
		return fmt.Errorf("failed to save bookkeeping: %w", err)
	}
	return nil
}

// SaveNotified writes only the notification stamps.
func (s *State) SaveNotified(ctx context.Context, notified map[int64]int64) error {
	if err := s.local.Set(ctx, map[string]any{KeyNotifiedCampaigns: notified}); err != nil {
		return fmt.Errorf("failed to save notifiedCampaigns: %w", err)
	}
	return nil
}

// ClearDailyBookkeeping empties notification stamps and the time-mode stamp.
func (s *State) ClearDailyBookkeeping(ctx context.Context) error {
	if err := s.SaveNotified(ctx, map[int64]int64{}); err != nil {
		return err
	}
	return s.SetLastUpdateTime(ctx, 0)
}
