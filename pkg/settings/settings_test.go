package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royhairul/auto-ads-shopee/pkg/config"
)

func TestDefaults_AreValid(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.Validate())
	assert.Equal(t, ModePercentage, s.Mode)
	assert.Equal(t, 98.0, s.BudgetThreshold)
	assert.Equal(t, int64(5000), s.DailyBudget)
	assert.True(t, s.NotificationEnabled)
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{"unknown mode", func(s *Settings) { s.Mode = "hourly" }, KeyMode},
		{"threshold too low", func(s *Settings) { s.BudgetThreshold = 0 }, KeyBudgetThreshold},
		{"threshold too high", func(s *Settings) { s.BudgetThreshold = 101 }, KeyBudgetThreshold},
		{"budget below minimum", func(s *Settings) { s.DailyBudget = 1000 }, KeyDailyBudget},
		{"budget not a step", func(s *Settings) { s.DailyBudget = 7500 }, KeyDailyBudget},
		{"cooldown too long", func(s *Settings) { s.NotificationCooldown = 1441 }, KeyNotificationCooldown},
		{"interval zero", func(s *Settings) { s.UpdateInterval = 0 }, KeyUpdateInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)

			err := s.Validate()
			require.Error(t, err)

			var verrs config.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidate_AcceptsStepMultiples(t *testing.T) {
	s := Defaults()
	s.DailyBudget = 25000
	assert.NoError(t, s.Validate())
}

func TestPatch_Apply(t *testing.T) {
	mode := ModeCombined
	interval := 15
	p := Patch{Mode: &mode, UpdateInterval: &interval}

	got := p.Apply(Defaults())
	assert.Equal(t, ModeCombined, got.Mode)
	assert.Equal(t, 15, got.UpdateInterval)
	assert.Equal(t, 98.0, got.BudgetThreshold)
	assert.True(t, got.UsesTime())
}
