package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/service/risk"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

// SlotAllocator is the slice of the slot optimizer the orchestrator drives.
type SlotAllocator interface {
	FindCandidateSlots(ctx context.Context, criteria model.SlotCriteria) ([]model.Slot, error)
	TryAllocate(ctx context.Context, slotID, patientID uuid.UUID, bufferMinutes int) (*model.Appointment, error)
}

// Waitlister is the slice of the waitlist manager the orchestrator drives.
type Waitlister interface {
	Enqueue(ctx context.Context, entry *model.WaitlistEntry) (int, error)
	RecordContactAttempt(ctx context.Context, patientID uuid.UUID) (*model.WaitlistEntry, bool, error)
}

// Service composes the risk assessor, slot optimizer and waitlist manager
// into one terminal decision per request: confirmed, waitlisted or rejected.
// It holds no state of its own and never reaches into the components'
// structures directly.
type Service struct {
	cfg      config.SchedulingConfig
	risk     *risk.Service
	slots    SlotAllocator
	waitlist Waitlister
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	cfg config.SchedulingConfig,
	riskSvc *risk.Service,
	slots SlotAllocator,
	waitlist Waitlister,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		cfg:      cfg,
		risk:     riskSvc,
		slots:    slots,
		waitlist: waitlist,
		logger:   logger,
		metrics:  metrics,
	}
}

// Schedule runs one request to a terminal outcome. Validation or assessment
// failures reject the request with the reason; they are never an error to the
// transport layer.
func (s *Service) Schedule(ctx context.Context, req *model.ScheduleRequest) (*model.Decision, error) {
	if req.PatientID == uuid.Nil {
		return s.reject(nil, "patient id is required"), nil
	}
	if req.NoShowProbability == nil {
		return s.reject(nil, "no-show probability is required"), nil
	}
	urgency := req.Urgency
	if urgency == 0 {
		urgency = risk.MinUrgency
	}

	assessment, err := s.risk.Assess(req.PatientID, *req.NoShowProbability, urgency)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrInvalidInput) {
			return s.reject(nil, err.Error()), nil
		}
		return nil, err
	}

	appt, err := s.attemptDirectAllocation(ctx, req, assessment)
	if err != nil {
		return nil, err
	}
	if appt != nil {
		if s.metrics != nil {
			s.metrics.DecisionsTotal.WithLabelValues(string(model.OutcomeConfirmed)).Inc()
		}
		s.logger.Info("appointment confirmed",
			"patient_id", req.PatientID.String(),
			"appointment_id", appt.ID.String(),
			"risk_level", string(assessment.RiskLevel))
		return &model.Decision{
			Outcome:     model.OutcomeConfirmed,
			Assessment:  assessment,
			Appointment: appt,
			DecidedAt:   time.Now(),
		}, nil
	}

	// Low risk is not waitlist-eligible unless explicitly enabled: low-risk
	// patients can rebook at will, so their misses do not consume queue
	// capacity needed for intervention-heavy patients.
	if assessment.RiskLevel == model.RiskLevelLow && !s.cfg.AllowLowRiskWaitlist {
		return s.reject(assessment, "no slots available in the requested range"), nil
	}

	return s.enqueue(ctx, req, assessment)
}

// attemptDirectAllocation walks the ranked candidates, bounded by
// configuration, retrying past slots lost to concurrent bookings. A nil
// appointment with nil error means candidates were exhausted.
func (s *Service) attemptDirectAllocation(ctx context.Context, req *model.ScheduleRequest, assessment *model.RiskAssessment) (*model.Appointment, error) {
	criteria := model.SlotCriteria{
		DoctorID:      req.PreferredDoctorID,
		DateFrom:      req.PreferredDate,
		TimeBand:      req.PreferredBand,
		BufferMinutes: assessment.BufferMinutes,
	}
	candidates, err := s.slots.FindCandidateSlots(ctx, criteria)
	if err != nil {
		return nil, err
	}

	attempts := len(candidates)
	if attempts > s.cfg.MaxCandidateAttempts {
		attempts = s.cfg.MaxCandidateAttempts
	}
	for i := 0; i < attempts; i++ {
		appt, err := s.slots.TryAllocate(ctx, candidates[i].ID, req.PatientID, assessment.BufferMinutes)
		if err == nil {
			return appt, nil
		}
		if apperrors.IsCode(err, apperrors.ErrSlotUnavailable) {
			continue
		}
		return nil, err
	}
	return nil, nil
}

func (s *Service) enqueue(ctx context.Context, req *model.ScheduleRequest, assessment *model.RiskAssessment) (*model.Decision, error) {
	priority := assessment.PriorityScore
	if assessment.RiskLevel == model.RiskLevelHigh {
		priority += s.cfg.HighRiskBoost
	}

	entry := &model.WaitlistEntry{
		PatientID:         req.PatientID,
		RequestedDoctorID: req.PreferredDoctorID,
		RequestedDate:     req.PreferredDate,
		RequestedBand:     req.PreferredBand,
		NoShowProbability: assessment.NoShowProbability,
		BufferMinutes:     assessment.BufferMinutes,
		PriorityScore:     priority,
	}

	pos, err := s.waitlist.Enqueue(ctx, entry)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrWaitlistFull) || apperrors.IsCode(err, apperrors.ErrInvalidInput) {
			if s.metrics != nil {
				s.metrics.DecisionsTotal.WithLabelValues(string(model.OutcomeRejected)).Inc()
			}
			return &model.Decision{
				Outcome:    model.OutcomeRejected,
				Assessment: assessment,
				Reason:     err.Error(),
				DecidedAt:  time.Now(),
			}, nil
		}
		return nil, err
	}

	// High-risk patients get an immediate outreach on the record so the
	// contact cadence starts now rather than at the first poll.
	if assessment.RiskLevel == model.RiskLevelHigh {
		if _, _, err := s.waitlist.RecordContactAttempt(ctx, req.PatientID); err != nil {
			s.logger.Error(err, "failed to record initial contact attempt", "patient_id", req.PatientID.String())
		}
	}

	if s.metrics != nil {
		s.metrics.DecisionsTotal.WithLabelValues(string(model.OutcomeWaitlisted)).Inc()
	}
	s.logger.Info("patient waitlisted",
		"patient_id", req.PatientID.String(),
		"risk_level", string(assessment.RiskLevel),
		"position", pos)
	return &model.Decision{
		Outcome:          model.OutcomeWaitlisted,
		Assessment:       assessment,
		WaitlistPosition: pos,
		DecidedAt:        time.Now(),
	}, nil
}

func (s *Service) reject(assessment *model.RiskAssessment, reason string) *model.Decision {
	if s.metrics != nil {
		s.metrics.DecisionsTotal.WithLabelValues(string(model.OutcomeRejected)).Inc()
	}
	return &model.Decision{
		Outcome:    model.OutcomeRejected,
		Assessment: assessment,
		Reason:     reason,
		DecidedAt:  time.Now(),
	}
}
