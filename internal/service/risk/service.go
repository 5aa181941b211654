package risk

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/model"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
)

const (
	MinUrgency = 1
	MaxUrgency = 5
)

// Service maps externally supplied no-show probabilities to risk levels,
// scheduling buffers, and waitlist priority scores. It holds no mutable
// state; every assessment is a pure function of its inputs and the
// configuration captured at construction.
type Service struct {
	cfg config.RiskConfig
}

func NewService(cfg config.RiskConfig) (*Service, error) {
	if !(0 < cfg.LowThreshold && cfg.LowThreshold < cfg.MediumThreshold && cfg.MediumThreshold < cfg.HighThreshold && cfg.HighThreshold <= 1) {
		return nil, apperrors.InvalidConfiguration(
			fmt.Sprintf("risk thresholds must satisfy 0 < low < medium < high <= 1, got %v < %v < %v",
				cfg.LowThreshold, cfg.MediumThreshold, cfg.HighThreshold), nil)
	}
	if cfg.Buffers.Low < 0 || cfg.Buffers.Medium < 0 || cfg.Buffers.High < 0 {
		return nil, apperrors.InvalidConfiguration("buffer minutes must be non-negative", nil)
	}
	if cfg.RiskWeight < 0 || cfg.UrgencyWeight < 0 || cfg.RiskWeight+cfg.UrgencyWeight == 0 {
		return nil, apperrors.InvalidConfiguration("priority weights must be non-negative and not both zero", nil)
	}
	return &Service{cfg: cfg}, nil
}

// Assess produces an immutable assessment for one scheduling request.
// Urgency outside the 1-5 scale is clamped rather than rejected; the
// probability itself must be a real number in [0,1].
func (s *Service) Assess(patientID uuid.UUID, noShowProbability float64, urgency int) (*model.RiskAssessment, error) {
	if math.IsNaN(noShowProbability) || noShowProbability < 0 || noShowProbability > 1 {
		return nil, apperrors.InvalidInput(
			fmt.Sprintf("no-show probability must be in [0,1], got %v", noShowProbability), nil)
	}
	urgency = clampUrgency(urgency)

	level := s.LevelFor(noShowProbability)
	return &model.RiskAssessment{
		PatientID:         patientID,
		NoShowProbability: noShowProbability,
		RiskLevel:         level,
		BufferMinutes:     s.BufferFor(level),
		PriorityScore:     s.PriorityScore(noShowProbability, urgency),
		Urgency:           urgency,
	}, nil
}

// LevelFor maps a probability to its configured band. Probabilities above
// the high threshold collapse into high; the mapping is monotonic in the
// probability for fixed thresholds.
func (s *Service) LevelFor(noShowProbability float64) model.RiskLevel {
	switch {
	case noShowProbability <= s.cfg.LowThreshold:
		return model.RiskLevelLow
	case noShowProbability <= s.cfg.MediumThreshold:
		return model.RiskLevelMedium
	default:
		return model.RiskLevelHigh
	}
}

// BufferFor returns the trailing buffer minutes for a level from the
// configured table.
func (s *Service) BufferFor(level model.RiskLevel) int {
	switch level {
	case model.RiskLevelLow:
		return s.cfg.Buffers.Low
	case model.RiskLevelMedium:
		return s.cfg.Buffers.Medium
	default:
		return s.cfg.Buffers.High
	}
}

// PriorityScore is the deterministic waitlist ranking value: a weighted
// combination of the no-show probability and the normalized urgency.
func (s *Service) PriorityScore(noShowProbability float64, urgency int) float64 {
	u := float64(clampUrgency(urgency)) / float64(MaxUrgency)
	return noShowProbability*s.cfg.RiskWeight + u*s.cfg.UrgencyWeight
}

func clampUrgency(urgency int) int {
	if urgency < MinUrgency {
		return MinUrgency
	}
	if urgency > MaxUrgency {
		return MaxUrgency
	}
	return urgency
}
