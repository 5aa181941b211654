package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/service/risk"
	slotService "github.com/jwalitptl/scheduler-api/internal/service/slot"
	waitlistService "github.com/jwalitptl/scheduler-api/internal/service/waitlist"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

// 2026-09-07 is a Monday.
var monday = time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

type engine struct {
	scheduler *Service
	slots     *slotService.Service
	waitlist  *waitlistService.Service
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})

	riskCfg := config.RiskConfig{
		LowThreshold:    0.30,
		MediumThreshold: 0.60,
		HighThreshold:   1.0,
		Buffers:         config.Buffers{Low: 0, Medium: 15, High: 30},
		RiskWeight:      0.6,
		UrgencyWeight:   0.4,
	}
	schedCfg := config.SchedulingConfig{
		WorkingHours:         model.WorkingHours{Start: 9, End: 17},
		SlotMinutes:          30,
		MaxCandidateAttempts: 5,
		HighRiskBoost:        0.2,
	}
	waitCfg := config.WaitlistConfig{
		MaxSize:            150,
		MaxContactAttempts: 5,
		HighContactEvery:   24 * time.Hour,
		MediumContactEvery: 72 * time.Hour,
		LowContactEvery:    168 * time.Hour,
	}

	riskSvc, err := risk.NewService(riskCfg)
	require.NoError(t, err)
	slots := slotService.NewService(schedCfg, nil, nil, nil, log, nil)
	waitlist := waitlistService.NewService(waitCfg, slots, riskSvc, nil, log, nil)

	return &engine{
		scheduler: NewService(schedCfg, riskSvc, slots, waitlist, log, nil),
		slots:     slots,
		waitlist:  waitlist,
	}
}

func request(prob float64) *model.ScheduleRequest {
	return &model.ScheduleRequest{
		PatientID:         uuid.New(),
		NoShowProbability: &prob,
		Urgency:           3,
	}
}

func TestSchedule_LowRiskConfirmedWithoutBuffer(t *testing.T) {
	e := newEngine(t)
	doctorID := uuid.New()
	_, err := e.slots.AddDoctorSchedule(context.Background(), doctorID, monday, monday, nil, 0)
	require.NoError(t, err)

	d, err := e.scheduler.Schedule(context.Background(), request(0.1))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeConfirmed, d.Outcome)
	require.NotNil(t, d.Appointment)
	assert.Equal(t, 0, d.Appointment.BufferMinutes)
	assert.Equal(t, model.RiskLevelLow, d.Assessment.RiskLevel)

	stats := e.slots.Stats()
	assert.Equal(t, 1, stats.BookedSlots)
	assert.Equal(t, 0, stats.HeldSlots)
}

func TestSchedule_HighRiskConfirmedWithBuffer(t *testing.T) {
	e := newEngine(t)
	doctorID := uuid.New()
	_, err := e.slots.AddDoctorSchedule(context.Background(), doctorID, monday, monday, nil, 0)
	require.NoError(t, err)

	d, err := e.scheduler.Schedule(context.Background(), request(0.65))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeConfirmed, d.Outcome)
	require.NotNil(t, d.Appointment)
	assert.Equal(t, 30, d.Appointment.BufferMinutes)
	assert.Equal(t, model.RiskLevelHigh, d.Assessment.RiskLevel)

	stats := e.slots.Stats()
	assert.Equal(t, 1, stats.BookedSlots)
	assert.Equal(t, 1, stats.HeldSlots)
}

func TestSchedule_LowRiskRejectedWhenNoSlots(t *testing.T) {
	e := newEngine(t)

	d, err := e.scheduler.Schedule(context.Background(), request(0.1))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, d.Outcome)
	assert.NotEmpty(t, d.Reason)
	assert.Equal(t, 0, e.waitlist.Stats().TotalWaiting)
}

func TestSchedule_LowRiskWaitlistedWhenAllowed(t *testing.T) {
	e := newEngine(t)
	e.scheduler.cfg.AllowLowRiskWaitlist = true

	d, err := e.scheduler.Schedule(context.Background(), request(0.1))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeWaitlisted, d.Outcome)
	assert.Equal(t, 1, d.WaitlistPosition)
}

func TestSchedule_MediumRiskWaitlistedWhenNoSlots(t *testing.T) {
	e := newEngine(t)

	d, err := e.scheduler.Schedule(context.Background(), request(0.5))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeWaitlisted, d.Outcome)
	assert.Equal(t, 1, d.WaitlistPosition)

	entries := e.waitlist.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].ContactAttempts)
	assert.InDelta(t, d.Assessment.PriorityScore, entries[0].PriorityScore, 1e-9)
}

func TestSchedule_HighRiskWaitlistedWithBoostAndContact(t *testing.T) {
	e := newEngine(t)

	d, err := e.scheduler.Schedule(context.Background(), request(0.9))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeWaitlisted, d.Outcome)

	entries := e.waitlist.Entries()
	require.Len(t, entries, 1)
	assert.InDelta(t, d.Assessment.PriorityScore+0.2, entries[0].PriorityScore, 1e-9)
	assert.Equal(t, 1, entries[0].ContactAttempts)
}

func TestSchedule_HighRiskOutranksMediumOnWaitlist(t *testing.T) {
	e := newEngine(t)

	medium, err := e.scheduler.Schedule(context.Background(), request(0.5))
	require.NoError(t, err)
	high, err := e.scheduler.Schedule(context.Background(), request(0.9))
	require.NoError(t, err)

	require.Equal(t, model.OutcomeWaitlisted, medium.Outcome)
	require.Equal(t, model.OutcomeWaitlisted, high.Outcome)

	entries := e.waitlist.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, high.Assessment.PatientID, entries[0].PatientID)
}

func TestSchedule_InvalidProbabilityRejected(t *testing.T) {
	e := newEngine(t)

	d, err := e.scheduler.Schedule(context.Background(), request(1.5))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, d.Outcome)
	assert.NotEmpty(t, d.Reason)
}

func TestSchedule_MissingProbabilityRejected(t *testing.T) {
	e := newEngine(t)

	d, err := e.scheduler.Schedule(context.Background(), &model.ScheduleRequest{PatientID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, d.Outcome)
}

func TestSchedule_WaitlistFullRejected(t *testing.T) {
	e := newEngine(t)
	e.scheduler.cfg.AllowLowRiskWaitlist = true

	for i := 0; i < 150; i++ {
		d, err := e.scheduler.Schedule(context.Background(), request(0.5))
		require.NoError(t, err)
		require.Equal(t, model.OutcomeWaitlisted, d.Outcome)
	}

	d, err := e.scheduler.Schedule(context.Background(), request(0.5))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, d.Outcome)
	assert.NotEmpty(t, d.Reason)
}

func TestSchedule_PrefersRequestedDoctor(t *testing.T) {
	e := newEngine(t)
	wanted := uuid.New()
	other := uuid.New()
	_, err := e.slots.AddDoctorSchedule(context.Background(), other, monday, monday, nil, 0)
	require.NoError(t, err)
	_, err = e.slots.AddDoctorSchedule(context.Background(), wanted, monday, monday, nil, 0)
	require.NoError(t, err)

	req := request(0.1)
	req.PreferredDoctorID = &wanted
	req.PreferredDate = &monday

	d, err := e.scheduler.Schedule(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, model.OutcomeConfirmed, d.Outcome)
	assert.Equal(t, wanted, d.Appointment.DoctorID)
}

func TestSchedule_CancellationBackfillsWaitlist(t *testing.T) {
	e := newEngine(t)
	doctorID := uuid.New()

	// One slot only: 9:00-9:30.
	hours := &model.WorkingHours{Start: 9, End: 10}
	_, err := e.slots.AddDoctorSchedule(context.Background(), doctorID, monday, monday, hours, 60)
	require.NoError(t, err)

	first, err := e.scheduler.Schedule(context.Background(), request(0.1))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeConfirmed, first.Outcome)

	second, err := e.scheduler.Schedule(context.Background(), request(0.5))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeWaitlisted, second.Outcome)

	evt, err := e.slots.Release(context.Background(), first.Appointment.ID)
	require.NoError(t, err)

	appt, err := e.waitlist.OnSlotFreed(context.Background(), evt)
	require.NoError(t, err)
	require.NotNil(t, appt)
	assert.Equal(t, second.Assessment.PatientID, appt.PatientID)
	assert.Equal(t, 0, e.waitlist.Stats().TotalWaiting)
}
