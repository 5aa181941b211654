package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/internal/model"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
)

func validConfig() *Config {
	return &Config{
		Risk: RiskConfig{
			LowThreshold:    0.30,
			MediumThreshold: 0.60,
			HighThreshold:   1.0,
			Buffers:         Buffers{Low: 0, Medium: 15, High: 30},
			RiskWeight:      0.6,
			UrgencyWeight:   0.4,
		},
		Scheduling: SchedulingConfig{
			WorkingHours:         model.WorkingHours{Start: 9, End: 18},
			SlotMinutes:          30,
			MaxCandidateAttempts: 5,
		},
		Waitlist: WaitlistConfig{
			MaxSize:            150,
			MaxContactAttempts: 5,
		},
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_RejectsUnorderedThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.Risk.LowThreshold = 0.7

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidConfiguration))
}

func TestValidate_RejectsThresholdAboveOne(t *testing.T) {
	cfg := validConfig()
	cfg.Risk.HighThreshold = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidConfiguration))
}

func TestValidate_RejectsInvertedWorkingHours(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduling.WorkingHours = model.WorkingHours{Start: 18, End: 9}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidConfiguration))
}

func TestValidate_RejectsZeroSlotDuration(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduling.SlotMinutes = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidConfiguration))
}

func TestValidate_RejectsZeroWaitlistSize(t *testing.T) {
	cfg := validConfig()
	cfg.Waitlist.MaxSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidConfiguration))
}
