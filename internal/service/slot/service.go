package slot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/messaging"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

// Service is the exclusive owner of all doctor slot grids and the single
// source of truth preventing double-booking. The in-memory grid is
// authoritative; repositories are a write-through record so appointments and
// schedules survive a restart.
type Service struct {
	cfg config.SchedulingConfig

	// mu guards grid topology (days, index) and the appointments map.
	// Slot state transitions are guarded by the per-doctor-day mutex, so
	// allocations on different days never serialize against each other.
	mu           sync.RWMutex
	days         map[uuid.UUID]map[string]*daySchedule
	index        map[uuid.UUID]slotRef
	appointments map[uuid.UUID]*apptRecord

	apptRepo  repository.AppointmentRepository
	schedRepo repository.ScheduleRepository
	broker    messaging.Broker
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	cfg config.SchedulingConfig,
	apptRepo repository.AppointmentRepository,
	schedRepo repository.ScheduleRepository,
	broker messaging.Broker,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		cfg:          cfg,
		days:         make(map[uuid.UUID]map[string]*daySchedule),
		index:        make(map[uuid.UUID]slotRef),
		appointments: make(map[uuid.UUID]*apptRecord),
		apptRepo:     apptRepo,
		schedRepo:    schedRepo,
		broker:       broker,
		logger:       logger,
		metrics:      metrics,
	}
}

// AddDoctorSchedule materializes free slots for every weekday in the range.
// Fails with ScheduleExists when any date in the range already has a grid for
// the doctor.
func (s *Service) AddDoctorSchedule(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time, hours *model.WorkingHours, slotMinutes int) (*model.DoctorSchedule, error) {
	if endDate.Before(startDate) {
		return nil, apperrors.InvalidInput("schedule end date precedes start date", nil)
	}
	wh := s.cfg.WorkingHours
	if hours != nil {
		wh = *hours
	}
	if wh.Start < 0 || wh.End > 24 || wh.Start >= wh.End {
		return nil, apperrors.InvalidInput("working hours must be an ascending range within a day", nil)
	}
	if slotMinutes <= 0 {
		slotMinutes = s.cfg.SlotMinutes
	}

	start, end := midnight(startDate), midnight(endDate)

	s.mu.Lock()
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if _, exists := s.days[doctorID][dateKey(d)]; exists {
			s.mu.Unlock()
			return nil, apperrors.ScheduleExists(
				fmt.Sprintf("schedule already defined for doctor %s on %s", doctorID, dateKey(d)))
		}
	}

	total := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		day := buildDay(doctorID, d, wh, slotMinutes)
		if s.days[doctorID] == nil {
			s.days[doctorID] = make(map[string]*daySchedule)
		}
		s.days[doctorID][dateKey(d)] = day
		for i, st := range day.slots {
			s.index[st.slot.ID] = slotRef{day: day, idx: i}
		}
		total += len(day.slots)
	}
	s.mu.Unlock()

	sched := &model.DoctorSchedule{
		ID:           uuid.New(),
		DoctorID:     doctorID,
		StartDate:    start,
		EndDate:      end,
		WorkingHours: wh,
		SlotMinutes:  slotMinutes,
		CreatedAt:    time.Now(),
	}
	s.persistSchedule(ctx, sched)
	s.refreshGauges()

	s.logger.Info("doctor schedule added", "doctor_id", doctorID.String(), "slots", total)
	return sched, nil
}

// FindCandidateSlots returns a ranked snapshot of free slots. The snapshot is
// finite and restartable; a candidate may be lost to a concurrent allocation
// by the time the caller attempts it, which TryAllocate reports as
// SlotUnavailable.
func (s *Service) FindCandidateSlots(ctx context.Context, criteria model.SlotCriteria) ([]model.Slot, error) {
	anchor := time.Now()
	if criteria.DateFrom != nil {
		anchor = *criteria.DateFrom
	}

	s.mu.RLock()
	days := make([]*daySchedule, 0)
	for _, byDate := range s.days {
		for _, day := range byDate {
			days = append(days, day)
		}
	}
	s.mu.RUnlock()

	var cands []candidate
	for _, day := range days {
		if criteria.DateFrom != nil && day.date.Before(midnight(*criteria.DateFrom)) {
			continue
		}
		if criteria.DateTo != nil && day.date.After(midnight(*criteria.DateTo)) {
			continue
		}

		day.mu.Lock()
		for _, st := range day.slots {
			if st.slot.Status != model.SlotStatusFree {
				continue
			}
			cands = append(cands, candidate{
				slot:        st.slot,
				doctorMatch: criteria.DoctorID != nil && st.slot.DoctorID == *criteria.DoctorID,
				dateDist:    daysBetween(st.slot.StartTime, anchor),
				bandMatch:   criteria.TimeBand != "" && model.BandFor(st.slot.StartTime) == criteria.TimeBand,
			})
		}
		day.mu.Unlock()
	}

	return rankCandidates(cands), nil
}

// TryAllocate atomically books a free slot for the patient and holds the
// trailing buffer. Concurrent attempts on the same slot are serialized by the
// doctor-day mutex; exactly one wins, the rest get SlotUnavailable.
//
// When a slot inside the buffer window is already booked or held, the booking
// still succeeds and the appointment records the degraded buffer: the gap
// actually available between the slot end and the first conflicting slot.
func (s *Service) TryAllocate(ctx context.Context, slotID, patientID uuid.UUID, bufferMinutes int) (*model.Appointment, error) {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.AllocationLatency)
		defer timer.ObserveDuration()
	}
	if bufferMinutes < 0 {
		return nil, apperrors.InvalidInput("buffer minutes must be non-negative", nil)
	}

	s.mu.RLock()
	ref, ok := s.index[slotID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("slot", nil)
	}

	day := ref.day
	day.mu.Lock()
	st := day.slots[ref.idx]
	if st.slot.Status != model.SlotStatusFree {
		status := st.slot.Status
		day.mu.Unlock()
		if s.metrics != nil {
			s.metrics.AllocationAttempts.WithLabelValues("lost_race").Inc()
			s.metrics.AllocationRaces.Inc()
		}
		return nil, apperrors.SlotUnavailable(
			fmt.Sprintf("slot %s is %s", slotID, status))
	}

	apptID := uuid.New()
	st.slot.Status = model.SlotStatusBooked

	granted := bufferMinutes
	var held []slotRef
	windowEnd := st.slot.EndTime.Add(time.Duration(bufferMinutes) * time.Minute)
	for j := ref.idx + 1; j < len(day.slots) && bufferMinutes > 0; j++ {
		next := day.slots[j]
		if !next.slot.StartTime.Before(windowEnd) {
			break
		}
		if next.slot.Status != model.SlotStatusFree {
			gap := int(next.slot.StartTime.Sub(st.slot.EndTime).Minutes())
			if gap < granted {
				granted = gap
			}
			break
		}
		next.slot.Status = model.SlotStatusHeld
		next.heldBy = apptID
		held = append(held, slotRef{day: day, idx: j})
	}

	now := time.Now()
	appt := &model.Appointment{
		ID:            apptID,
		PatientID:     patientID,
		DoctorID:      st.slot.DoctorID,
		SlotID:        st.slot.ID,
		SlotStart:     st.slot.StartTime,
		SlotEnd:       st.slot.EndTime,
		BufferMinutes: granted,
		Status:        model.AppointmentStatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	day.mu.Unlock()

	s.mu.Lock()
	s.appointments[appt.ID] = &apptRecord{appt: appt, ref: ref, held: held}
	s.mu.Unlock()

	s.persistAppointment(ctx, appt)
	if s.metrics != nil {
		s.metrics.AllocationAttempts.WithLabelValues("success").Inc()
	}
	s.refreshGauges()

	if granted < bufferMinutes {
		s.logger.Warn("buffer degraded by adjacent booking",
			"appointment_id", appt.ID.String(), "requested", bufferMinutes, "granted", granted)
	}
	return appt, nil
}

// Release cancels an appointment, returns its booked slot and any held buffer
// slots to the free pool, and publishes a slot.freed event for the waitlist
// manager. No lock is held while publishing.
func (s *Service) Release(ctx context.Context, appointmentID uuid.UUID) (*model.SlotFreedEvent, error) {
	s.mu.Lock()
	rec, ok := s.appointments[appointmentID]
	if !ok {
		s.mu.Unlock()
		return nil, apperrors.NotFound("appointment", nil)
	}
	delete(s.appointments, appointmentID)
	s.mu.Unlock()

	day := rec.ref.day
	day.mu.Lock()
	day.slots[rec.ref.idx].slot.Status = model.SlotStatusFree
	for _, h := range rec.held {
		st := h.day.slots[h.idx]
		if st.heldBy == appointmentID {
			st.slot.Status = model.SlotStatusFree
			st.heldBy = uuid.Nil
		}
	}
	day.mu.Unlock()

	rec.appt.Status = model.AppointmentStatusCancelled
	rec.appt.UpdatedAt = time.Now()
	s.persistStatus(ctx, rec.appt)
	s.refreshGauges()

	evt := &model.SlotFreedEvent{
		DoctorID:  rec.appt.DoctorID,
		SlotID:    rec.appt.SlotID,
		StartTime: rec.appt.SlotStart,
		EndTime:   rec.appt.SlotEnd,
	}
	if s.broker != nil {
		if err := s.broker.Publish(ctx, messaging.ChannelSlotFreed, evt); err != nil {
			s.logger.Error(err, "failed to publish slot.freed event", "slot_id", evt.SlotID.String())
		} else if s.metrics != nil {
			s.metrics.EventsPublished.WithLabelValues(messaging.ChannelSlotFreed).Inc()
		}
	}

	s.logger.Info("appointment released", "appointment_id", appointmentID.String(), "slot_id", evt.SlotID.String())
	return evt, nil
}

// GetAppointment returns the live record for a confirmed appointment.
func (s *Service) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, error) {
	s.mu.RLock()
	rec, ok := s.appointments[appointmentID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	cp := *rec.appt
	return &cp, nil
}

// GetAvailability lists the free slots for a doctor on a given date.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.Slot, error) {
	s.mu.RLock()
	day, ok := s.days[doctorID][dateKey(date)]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("schedule", nil)
	}

	day.mu.Lock()
	defer day.mu.Unlock()
	var free []model.Slot
	for _, st := range day.slots {
		if st.slot.Status == model.SlotStatusFree {
			free = append(free, st.slot)
		}
	}
	return free, nil
}

// Stats summarizes grid utilization across all doctors.
func (s *Service) Stats() model.SlotStats {
	s.mu.RLock()
	days := make([]*daySchedule, 0)
	for _, byDate := range s.days {
		for _, day := range byDate {
			days = append(days, day)
		}
	}
	s.mu.RUnlock()

	var stats model.SlotStats
	for _, day := range days {
		day.mu.Lock()
		for _, st := range day.slots {
			stats.TotalSlots++
			switch st.slot.Status {
			case model.SlotStatusFree:
				stats.FreeSlots++
			case model.SlotStatusHeld:
				stats.HeldSlots++
			case model.SlotStatusBooked:
				stats.BookedSlots++
			}
		}
		day.mu.Unlock()
	}
	if stats.TotalSlots > 0 {
		stats.UtilizationRate = float64(stats.BookedSlots+stats.HeldSlots) / float64(stats.TotalSlots)
	}
	return stats
}

// RestoreSchedule rebuilds a persisted schedule's grid at boot without
// re-persisting it. Dates already covered by a restored grid are skipped.
func (s *Service) RestoreSchedule(sched *model.DoctorSchedule) {
	s.mu.Lock()
	for d := midnight(sched.StartDate); !d.After(midnight(sched.EndDate)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if _, exists := s.days[sched.DoctorID][dateKey(d)]; exists {
			continue
		}
		day := buildDay(sched.DoctorID, d, sched.WorkingHours, sched.SlotMinutes)
		if s.days[sched.DoctorID] == nil {
			s.days[sched.DoctorID] = make(map[string]*daySchedule)
		}
		s.days[sched.DoctorID][dateKey(d)] = day
		for i, st := range day.slots {
			s.index[st.slot.ID] = slotRef{day: day, idx: i}
		}
	}
	s.mu.Unlock()
	s.refreshGauges()
}

// RestoreAppointment rebooks a persisted appointment into the grid at boot.
// The schedule covering the slot must have been restored first.
func (s *Service) RestoreAppointment(ctx context.Context, appt *model.Appointment) error {
	s.mu.RLock()
	day, ok := s.days[appt.DoctorID][dateKey(appt.SlotStart)]
	s.mu.RUnlock()
	if !ok {
		return apperrors.NotFound("schedule", nil)
	}

	day.mu.Lock()
	idx := -1
	for i, st := range day.slots {
		if st.slot.StartTime.Equal(appt.SlotStart) {
			idx = i
			break
		}
	}
	if idx == -1 || day.slots[idx].slot.Status != model.SlotStatusFree {
		day.mu.Unlock()
		return apperrors.SlotUnavailable("slot missing or already taken during restore")
	}
	day.slots[idx].slot.Status = model.SlotStatusBooked
	appt.SlotID = day.slots[idx].slot.ID

	var held []slotRef
	windowEnd := appt.SlotEnd.Add(time.Duration(appt.BufferMinutes) * time.Minute)
	for j := idx + 1; j < len(day.slots) && appt.BufferMinutes > 0; j++ {
		next := day.slots[j]
		if !next.slot.StartTime.Before(windowEnd) || next.slot.Status != model.SlotStatusFree {
			break
		}
		next.slot.Status = model.SlotStatusHeld
		next.heldBy = appt.ID
		held = append(held, slotRef{day: day, idx: j})
	}
	day.mu.Unlock()

	s.mu.Lock()
	s.appointments[appt.ID] = &apptRecord{appt: appt, ref: slotRef{day: day, idx: idx}, held: held}
	s.mu.Unlock()
	return nil
}

func (s *Service) persistAppointment(ctx context.Context, appt *model.Appointment) {
	if s.apptRepo == nil {
		return
	}
	if err := s.apptRepo.Create(ctx, appt); err != nil {
		s.logger.Error(err, "failed to persist appointment", "appointment_id", appt.ID.String())
		if s.metrics != nil {
			s.metrics.DatabaseOperations.WithLabelValues("appointment_create", "error").Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.DatabaseOperations.WithLabelValues("appointment_create", "success").Inc()
	}
}

func (s *Service) persistStatus(ctx context.Context, appt *model.Appointment) {
	if s.apptRepo == nil {
		return
	}
	if err := s.apptRepo.UpdateStatus(ctx, appt.ID, appt.Status); err != nil {
		s.logger.Error(err, "failed to persist appointment status", "appointment_id", appt.ID.String())
	}
}

func (s *Service) persistSchedule(ctx context.Context, sched *model.DoctorSchedule) {
	if s.schedRepo == nil {
		return
	}
	if err := s.schedRepo.Create(ctx, sched); err != nil {
		s.logger.Error(err, "failed to persist doctor schedule", "schedule_id", sched.ID.String())
	}
}

func (s *Service) refreshGauges() {
	if s.metrics == nil {
		return
	}
	stats := s.Stats()
	s.metrics.SlotsFree.Set(float64(stats.FreeSlots))
	s.metrics.SlotsHeld.Set(float64(stats.HeldSlots))
	s.metrics.SlotsBooked.Set(float64(stats.BookedSlots))
}
