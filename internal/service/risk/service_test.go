package risk

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/model"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
)

func testConfig() config.RiskConfig {
	return config.RiskConfig{
		LowThreshold:    0.30,
		MediumThreshold: 0.60,
		HighThreshold:   1.0,
		Buffers:         config.Buffers{Low: 0, Medium: 15, High: 30},
		RiskWeight:      0.6,
		UrgencyWeight:   0.4,
	}
}

func TestNewService_RejectsBadThresholds(t *testing.T) {
	cfg := testConfig()
	cfg.MediumThreshold = 0.2 // below low

	_, err := NewService(cfg)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidConfiguration))
}

func TestNewService_RejectsNegativeBuffers(t *testing.T) {
	cfg := testConfig()
	cfg.Buffers.Medium = -5

	_, err := NewService(cfg)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidConfiguration))
}

func TestAssess_InvalidProbability(t *testing.T) {
	svc, err := NewService(testConfig())
	require.NoError(t, err)

	for _, p := range []float64{-0.1, 1.1, math.NaN()} {
		_, err := svc.Assess(uuid.New(), p, 3)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidInput))
	}
}

func TestAssess_LevelsAndBuffers(t *testing.T) {
	svc, err := NewService(testConfig())
	require.NoError(t, err)

	tests := []struct {
		prob   float64
		level  model.RiskLevel
		buffer int
	}{
		{0.0, model.RiskLevelLow, 0},
		{0.30, model.RiskLevelLow, 0},
		{0.31, model.RiskLevelMedium, 15},
		{0.60, model.RiskLevelMedium, 15},
		{0.61, model.RiskLevelHigh, 30},
		{1.0, model.RiskLevelHigh, 30},
	}
	for _, tt := range tests {
		a, err := svc.Assess(uuid.New(), tt.prob, 3)
		require.NoError(t, err)
		assert.Equal(t, tt.level, a.RiskLevel, "prob %v", tt.prob)
		assert.Equal(t, tt.buffer, a.BufferMinutes, "prob %v", tt.prob)
	}
}

func TestAssess_ClampsUrgency(t *testing.T) {
	svc, err := NewService(testConfig())
	require.NoError(t, err)

	low, err := svc.Assess(uuid.New(), 0.5, -3)
	require.NoError(t, err)
	assert.Equal(t, MinUrgency, low.Urgency)

	high, err := svc.Assess(uuid.New(), 0.5, 99)
	require.NoError(t, err)
	assert.Equal(t, MaxUrgency, high.Urgency)
}

func TestPriorityScore_Monotonic(t *testing.T) {
	svc, err := NewService(testConfig())
	require.NoError(t, err)

	assert.Greater(t, svc.PriorityScore(0.9, 3), svc.PriorityScore(0.5, 3))
	assert.Greater(t, svc.PriorityScore(0.5, 5), svc.PriorityScore(0.5, 2))
}

func TestPriorityScore_Deterministic(t *testing.T) {
	svc, err := NewService(testConfig())
	require.NoError(t, err)

	a := svc.PriorityScore(0.72, 4)
	b := svc.PriorityScore(0.72, 4)
	assert.Equal(t, a, b)
	assert.InDelta(t, 0.72*0.6+0.8*0.4, a, 1e-9)
}
