package waitlist

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
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

type fakeAllocator struct {
	err       error
	allocated []uuid.UUID
	released  []uuid.UUID
}

func (f *fakeAllocator) TryAllocate(ctx context.Context, slotID, patientID uuid.UUID, bufferMinutes int) (*model.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.allocated = append(f.allocated, patientID)
	return &model.Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		SlotID:    slotID,
		Status:    model.AppointmentStatusConfirmed,
	}, nil
}

func (f *fakeAllocator) Release(ctx context.Context, appointmentID uuid.UUID) (*model.SlotFreedEvent, error) {
	f.released = append(f.released, appointmentID)
	return &model.SlotFreedEvent{}, nil
}

type stubClassifier struct{}

func (stubClassifier) LevelFor(p float64) model.RiskLevel {
	switch {
	case p <= 0.30:
		return model.RiskLevelLow
	case p <= 0.60:
		return model.RiskLevelMedium
	default:
		return model.RiskLevelHigh
	}
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

func testConfig() config.WaitlistConfig {
	return config.WaitlistConfig{
		MaxSize:            150,
		MaxContactAttempts: 5,
		HighContactEvery:   24 * time.Hour,
		MediumContactEvery: 72 * time.Hour,
		LowContactEvery:    168 * time.Hour,
	}
}

func newTestService(alloc Allocator) *Service {
	return NewService(testConfig(), alloc, stubClassifier{}, nil, testLogger(), nil)
}

func entryWithProb(prob float64) *model.WaitlistEntry {
	return &model.WaitlistEntry{
		PatientID:         uuid.New(),
		NoShowProbability: prob,
		PriorityScore:     prob,
	}
}

func TestEnqueue_OrdersByPriority(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	a := entryWithProb(0.9)
	b := entryWithProb(0.3)
	c := entryWithProb(0.7)

	for _, e := range []*model.WaitlistEntry{a, b, c} {
		_, err := svc.Enqueue(context.Background(), e)
		require.NoError(t, err)
	}

	entries := svc.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, a.PatientID, entries[0].PatientID)
	assert.Equal(t, c.PatientID, entries[1].PatientID)
	assert.Equal(t, b.PatientID, entries[2].PatientID)

	assert.Equal(t, 1, svc.Position(a.PatientID))
	assert.Equal(t, 2, svc.Position(c.PatientID))
	assert.Equal(t, 3, svc.Position(b.PatientID))
}

func TestEnqueue_TiesBreakByArrival(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	now := time.Now()
	first := entryWithProb(0.5)
	first.EnqueuedAt = now
	second := entryWithProb(0.5)
	second.EnqueuedAt = now

	_, err := svc.Enqueue(context.Background(), first)
	require.NoError(t, err)
	_, err = svc.Enqueue(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, 1, svc.Position(first.PatientID))
	assert.Equal(t, 2, svc.Position(second.PatientID))
}

func TestEnqueue_RejectsWhenFull(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	for i := 0; i < 150; i++ {
		_, err := svc.Enqueue(context.Background(), entryWithProb(0.5))
		require.NoError(t, err)
	}

	_, err := svc.Enqueue(context.Background(), entryWithProb(0.99))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrWaitlistFull))
	assert.Equal(t, 150, svc.Stats().TotalWaiting)
}

func TestEnqueue_RejectsDuplicatePatient(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	e := entryWithProb(0.5)
	_, err := svc.Enqueue(context.Background(), e)
	require.NoError(t, err)

	dup := &model.WaitlistEntry{PatientID: e.PatientID, NoShowProbability: 0.8, PriorityScore: 0.8}
	_, err = svc.Enqueue(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidInput))
}

func TestOnSlotFreed_PromotesHighestPriority(t *testing.T) {
	alloc := &fakeAllocator{}
	svc := newTestService(alloc)

	low := entryWithProb(0.3)
	high := entryWithProb(0.9)
	_, err := svc.Enqueue(context.Background(), low)
	require.NoError(t, err)
	_, err = svc.Enqueue(context.Background(), high)
	require.NoError(t, err)

	appt, err := svc.OnSlotFreed(context.Background(), &model.SlotFreedEvent{
		SlotID:    uuid.New(),
		StartTime: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, appt)
	assert.Equal(t, high.PatientID, appt.PatientID)

	// The promoted entry is gone, the other remains.
	assert.Equal(t, 0, svc.Position(high.PatientID))
	assert.Equal(t, 1, svc.Position(low.PatientID))
}

func TestOnSlotFreed_SkipsIncompatibleDoctor(t *testing.T) {
	alloc := &fakeAllocator{}
	svc := newTestService(alloc)

	wanted := uuid.New()
	picky := entryWithProb(0.9)
	picky.RequestedDoctorID = &wanted
	flexible := entryWithProb(0.4)

	_, err := svc.Enqueue(context.Background(), picky)
	require.NoError(t, err)
	_, err = svc.Enqueue(context.Background(), flexible)
	require.NoError(t, err)

	appt, err := svc.OnSlotFreed(context.Background(), &model.SlotFreedEvent{
		DoctorID:  uuid.New(),
		SlotID:    uuid.New(),
		StartTime: time.Now(),
	})
	require.NoError(t, err)
	require.NotNil(t, appt)
	assert.Equal(t, flexible.PatientID, appt.PatientID)
	assert.Equal(t, 1, svc.Position(picky.PatientID))
}

func TestOnSlotFreed_RespectsDateWindow(t *testing.T) {
	alloc := &fakeAllocator{}
	svc := newTestService(alloc)

	wanted := time.Now()
	e := entryWithProb(0.9)
	e.RequestedDate = &wanted
	_, err := svc.Enqueue(context.Background(), e)
	require.NoError(t, err)

	appt, err := svc.OnSlotFreed(context.Background(), &model.SlotFreedEvent{
		SlotID:    uuid.New(),
		StartTime: wanted.Add(8 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Nil(t, appt)

	appt, err = svc.OnSlotFreed(context.Background(), &model.SlotFreedEvent{
		SlotID:    uuid.New(),
		StartTime: wanted.Add(6 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, appt)
	assert.Equal(t, e.PatientID, appt.PatientID)
}

func TestOnSlotFreed_LostRaceLeavesEntryWaiting(t *testing.T) {
	alloc := &fakeAllocator{err: apperrors.SlotUnavailable("taken")}
	svc := newTestService(alloc)

	e := entryWithProb(0.9)
	_, err := svc.Enqueue(context.Background(), e)
	require.NoError(t, err)

	appt, err := svc.OnSlotFreed(context.Background(), &model.SlotFreedEvent{
		SlotID:    uuid.New(),
		StartTime: time.Now(),
	})
	require.NoError(t, err)
	assert.Nil(t, appt)
	assert.Equal(t, 1, svc.Position(e.PatientID))
}

func TestOnSlotFreed_EmptyWaitlist(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	appt, err := svc.OnSlotFreed(context.Background(), &model.SlotFreedEvent{
		SlotID:    uuid.New(),
		StartTime: time.Now(),
	})
	require.NoError(t, err)
	assert.Nil(t, appt)
}

func TestRecordContactAttempt_ExpiresAtCap(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	e := entryWithProb(0.9)
	_, err := svc.Enqueue(context.Background(), e)
	require.NoError(t, err)

	for i := 1; i < 5; i++ {
		entry, expired, err := svc.RecordContactAttempt(context.Background(), e.PatientID)
		require.NoError(t, err)
		assert.False(t, expired)
		assert.Equal(t, i, entry.ContactAttempts)
	}

	entry, expired, err := svc.RecordContactAttempt(context.Background(), e.PatientID)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, 5, entry.ContactAttempts)
	assert.Equal(t, model.WaitlistStatusExpired, entry.Status)
	assert.Equal(t, 0, svc.Position(e.PatientID))

	_, _, err = svc.RecordContactAttempt(context.Background(), e.PatientID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestCancel_Idempotent(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	e := entryWithProb(0.5)
	_, err := svc.Enqueue(context.Background(), e)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), e.PatientID))
	require.NoError(t, svc.Cancel(context.Background(), e.PatientID))
	require.NoError(t, svc.Cancel(context.Background(), uuid.New()))
	assert.Equal(t, 0, svc.Stats().TotalWaiting)
}

func TestDueForContact_CadenceByRisk(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	high := entryWithProb(0.9)
	high.EnqueuedAt = time.Now().Add(-25 * time.Hour)
	low := entryWithProb(0.2)
	low.EnqueuedAt = time.Now().Add(-25 * time.Hour)

	_, err := svc.Enqueue(context.Background(), high)
	require.NoError(t, err)
	_, err = svc.Enqueue(context.Background(), low)
	require.NoError(t, err)

	due := svc.DueForContact(time.Now())
	require.Len(t, due, 1)
	assert.Equal(t, high.PatientID, due[0].PatientID)
}

func TestRestore_RebuildsOrder(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	a := entryWithProb(0.4)
	a.Seq = 7
	a.EnqueuedAt = time.Now().Add(-time.Hour)
	b := entryWithProb(0.8)
	b.Seq = 3
	b.EnqueuedAt = time.Now().Add(-2 * time.Hour)

	svc.Restore([]*model.WaitlistEntry{a, b})

	assert.Equal(t, 1, svc.Position(b.PatientID))
	assert.Equal(t, 2, svc.Position(a.PatientID))

	// New entries continue the sequence past the restored maximum.
	c := entryWithProb(0.1)
	_, err := svc.Enqueue(context.Background(), c)
	require.NoError(t, err)
	assert.Greater(t, svc.Entries()[2].Seq, uint64(7))
}

func TestStats_BreaksDownByRisk(t *testing.T) {
	svc := newTestService(&fakeAllocator{})

	for _, p := range []float64{0.1, 0.5, 0.7, 0.9} {
		_, err := svc.Enqueue(context.Background(), entryWithProb(p))
		require.NoError(t, err)
	}

	stats := svc.Stats()
	assert.Equal(t, 4, stats.TotalWaiting)
	assert.Equal(t, 1, stats.RiskBreakdown["low"])
	assert.Equal(t, 1, stats.RiskBreakdown["medium"])
	assert.Equal(t, 2, stats.RiskBreakdown["high"])
	assert.Equal(t, 150, stats.MaxSize)
}
