// Package settings defines the user-editable decision policy and its defaults.
package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/royhairul/auto-ads-shopee/pkg/config"
)

// Mode selects the raise trigger policy.
type Mode string

const (
	ModePercentage Mode = "percentage"
	ModeTime       Mode = "time"
	ModeCombined   Mode = "combined"
)

// BudgetStep is the granularity, in rupiah, the platform accepts for budgets.
const BudgetStep = 5000

// Store keys, shared with persisted state.
const (
	KeyMode                   = "mode"
	KeyBudgetThreshold        = "budgetThreshold"
	KeyUpdateInterval         = "updateInterval"
	KeyDailyBudget            = "dailyBudget"
	KeyNotificationCooldown   = "notificationCooldown"
	KeyNotificationEnabled    = "notificationEnabled"
	KeyEffectivenessThreshold = "effectivenessThreshold"
	KeyLastUpdateTime         = "lastUpdateTime"
)

// Keys lists every settings key in the synced scope.
var Keys = []string{
	KeyMode,
	KeyBudgetThreshold,
	KeyUpdateInterval,
	KeyDailyBudget,
	KeyNotificationCooldown,
	KeyNotificationEnabled,
	KeyEffectivenessThreshold,
	KeyLastUpdateTime,
}

// Settings is an immutable snapshot of the decision policy.
type Settings struct {
	Mode                   Mode    `json:"mode" yaml:"mode" validate:"oneof=percentage time combined"`
	BudgetThreshold        float64 `json:"budgetThreshold" yaml:"budgetThreshold" validate:"gte=1,lte=100"`
	UpdateInterval         int     `json:"updateInterval" yaml:"updateInterval" validate:"gte=1"`
	DailyBudget            int64   `json:"dailyBudget" yaml:"dailyBudget" validate:"gte=5000,lte=1000000000,budgetstep"`
	NotificationCooldown   int     `json:"notificationCooldown" yaml:"notificationCooldown" validate:"gte=1,lte=1440"`
	NotificationEnabled    bool    `json:"notificationEnabled" yaml:"notificationEnabled"`
	EffectivenessThreshold float64 `json:"effectivenessThreshold" yaml:"effectivenessThreshold" validate:"gte=0"`
	LastUpdateTime         int64   `json:"lastUpdateTime" yaml:"lastUpdateTime" validate:"gte=0"`
}

// Defaults returns the policy used for any key absent from the store.
func Defaults() Settings {
	return Settings{
		Mode:                   ModePercentage,
		BudgetThreshold:        98,
		UpdateInterval:         10,
		DailyBudget:            5000,
		NotificationCooldown:   5,
		NotificationEnabled:    true,
		EffectivenessThreshold: 20,
		LastUpdateTime:         0,
	}
}

// Interval returns UpdateInterval as a duration.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.UpdateInterval) * time.Minute
}

// Cooldown returns NotificationCooldown as a duration.
func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.NotificationCooldown) * time.Minute
}

// UsesTime reports whether the interval trigger participates in the mode.
func (s Settings) UsesTime() bool {
	return s.Mode == ModeTime || s.Mode == ModeCombined
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("budgetstep", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%BudgetStep == 0
	})
	return v
}

// Validate checks every field against its allowed range.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate settings: %w", err)
	}

	var out config.ValidationErrors
	for _, fe := range fieldErrs {
		out = append(out, config.ValidationError{
			Field:   jsonName(fe.Field()),
			Message: describe(fe),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "budgetstep":
		return fmt.Sprintf("must be a multiple of %d", BudgetStep)
	default:
		return "is invalid"
	}
}

func jsonName(field string) string {
	switch field {
	case "Mode":
		return KeyMode
	case "BudgetThreshold":
		return KeyBudgetThreshold
	case "UpdateInterval":
		return KeyUpdateInterval
	case "DailyBudget":
		return KeyDailyBudget
	case "NotificationCooldown":
		return KeyNotificationCooldown
	case "NotificationEnabled":
		return KeyNotificationEnabled
	case "EffectivenessThreshold":
		return KeyEffectivenessThreshold
	case "LastUpdateTime":
		return KeyLastUpdateTime
	}
	return field
}

// Patch is a partial settings update; nil fields are left unchanged.
type Patch struct {
	Mode                   *Mode    `json:"mode,omitempty"`
	BudgetThreshold        *float64 `json:"budgetThreshold,omitempty"`
	UpdateInterval         *int     `json:"updateInterval,omitempty"`
	DailyBudget            *int64   `json:"dailyBudget,omitempty"`
	NotificationCooldown   *int     `json:"notificationCooldown,omitempty"`
	NotificationEnabled    *bool    `json:"notificationEnabled,omitempty"`
	EffectivenessThreshold *float64 `json:"effectivenessThreshold,omitempty"`
}

// Apply returns s with the patch merged on top.
func (p Patch) Apply(s Settings) Settings {
	if p.Mode != nil {
		s.Mode = *p.Mode
	}
	if p.BudgetThreshold != nil {
		s.BudgetThreshold = *p.BudgetThreshold
	}
	if p.UpdateInterval != nil {
		s.UpdateInterval = *p.UpdateInterval
	}
	if p.DailyBudget != nil {
		s.DailyBudget = *p.DailyBudget
	}
	if p.NotificationCooldown != nil {
		s.NotificationCooldown = *p.NotificationCooldown
	}
	if p.NotificationEnabled != nil {
		s.NotificationEnabled = *p.NotificationEnabled
	}
	if p.EffectivenessThreshold != nil {
		s.EffectivenessThreshold = *p.EffectivenessThreshold
	}
	return s
}

// Items returns the settings keyed for the synced store.
func (s Settings) Items() map[string]any {
	return map[string]any{
		KeyMode:                   s.Mode,
		KeyBudgetThreshold:        s.BudgetThreshold,
		KeyUpdateInterval:         s.UpdateInterval,
		KeyDailyBudget:            s.DailyBudget,
		KeyNotificationCooldown:   s.NotificationCooldown,
		KeyNotificationEnabled:    s.NotificationEnabled,
		KeyEffectivenessThreshold: s.EffectivenessThreshold,
		KeyLastUpdateTime:         s.LastUpdateTime,
	}
}
