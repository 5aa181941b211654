package waitlist

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

// compatWindowDays bounds how far a freed slot may drift from an entry's
// requested date and still be offered.
const compatWindowDays = 7

// Allocator is the slice of the slot optimizer the waitlist needs for
// promotions. Release undoes an allocation whose entry was cancelled while
// the allocation was in flight.
type Allocator interface {
	TryAllocate(ctx context.Context, slotID, patientID uuid.UUID, bufferMinutes int) (*model.Appointment, error)
	Release(ctx context.Context, appointmentID uuid.UUID) (*model.SlotFreedEvent, error)
}

// RiskClassifier maps a stored probability back to its level, used for
// contact cadence.
type RiskClassifier interface {
	LevelFor(noShowProbability float64) model.RiskLevel
}

// Service holds patients for whom no immediate slot exists and converts
// slot-freed events into allocations. A single mutex serializes all mutations
// of the ordered structure, so the (priority desc, enqueued asc, seq asc)
// order holds under concurrent enqueue and fill.
type Service struct {
	cfg config.WaitlistConfig

	mu        sync.Mutex
	entries   []*model.WaitlistEntry
	byPatient map[uuid.UUID]*model.WaitlistEntry
	seq       uint64

	allocator  Allocator
	classifier RiskClassifier
	repo       repository.WaitlistRepository
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewService(
	cfg config.WaitlistConfig,
	allocator Allocator,
	classifier RiskClassifier,
	repo repository.WaitlistRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		cfg:        cfg,
		byPatient:  make(map[uuid.UUID]*model.WaitlistEntry),
		allocator:  allocator,
		classifier: classifier,
		repo:       repo,
		logger:     logger,
		metrics:    metrics,
	}
}

// Enqueue inserts maintaining total order and returns the 1-based position.
// A full waitlist is a hard rejection; the lowest-priority entry is never
// silently displaced.
func (s *Service) Enqueue(ctx context.Context, entry *model.WaitlistEntry) (int, error) {
	s.mu.Lock()
	if len(s.entries) >= s.cfg.MaxSize {
		s.mu.Unlock()
		return 0, apperrors.WaitlistFull(
			fmt.Sprintf("waitlist is at capacity (%d)", s.cfg.MaxSize))
	}
	if _, exists := s.byPatient[entry.PatientID]; exists {
		s.mu.Unlock()
		return 0, apperrors.InvalidInput(
			fmt.Sprintf("patient %s is already waitlisted", entry.PatientID), nil)
	}

	s.seq++
	entry.Seq = s.seq
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}
	entry.Status = model.WaitlistStatusWaiting

	pos := s.insertLocked(entry)
	depth := len(s.entries)
	s.mu.Unlock()

	s.persist(ctx, entry)
	if s.metrics != nil {
		s.metrics.WaitlistDepth.Set(float64(depth))
	}
	s.logger.Info("patient waitlisted",
		"patient_id", entry.PatientID.String(), "priority", entry.PriorityScore, "position", pos)
	return pos, nil
}

// insertLocked places the entry at its ordered position. Callers hold s.mu.
func (s *Service) insertLocked(entry *model.WaitlistEntry) int {
	idx := sort.Search(len(s.entries), func(i int) bool {
		return entryLess(entry, s.entries[i])
	})
	s.entries = append(s.entries, nil)
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = entry
	s.byPatient[entry.PatientID] = entry
	return idx + 1
}

// entryLess is the total order: priority desc, enqueued asc, seq asc.
func entryLess(a, b *model.WaitlistEntry) bool {
	if a.PriorityScore != b.PriorityScore {
		return a.PriorityScore > b.PriorityScore
	}
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.Seq < b.Seq
}

// OnSlotFreed offers the freed slot to the first compatible waiting entry.
// At most one entry is promoted per freed slot. Losing the allocation race
// to a direct request leaves the entry waiting for the next event; direct
// requests and promotions race fairly, there is no waitlist-first reservation
// of freed slots.
func (s *Service) OnSlotFreed(ctx context.Context, evt *model.SlotFreedEvent) (*model.Appointment, error) {
	s.mu.Lock()
	var target *model.WaitlistEntry
	for _, e := range s.entries {
		if compatible(e, evt) {
			target = e
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return nil, nil
	}

	// The allocator call happens outside our lock; cross-component calls
	// never hold a component's critical section.
	appt, err := s.allocator.TryAllocate(ctx, evt.SlotID, target.PatientID, target.BufferMinutes)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrSlotUnavailable) {
			s.logger.Info("waitlist promotion lost slot race",
				"patient_id", target.PatientID.String(), "slot_id", evt.SlotID.String())
			return nil, nil
		}
		return nil, err
	}

	s.mu.Lock()
	entry, still := s.byPatient[target.PatientID]
	if still {
		s.removeLocked(entry)
		entry.Status = model.WaitlistStatusFilled
	}
	depth := len(s.entries)
	s.mu.Unlock()

	if !still {
		// Entry was cancelled while the allocation was in flight; give the
		// slot back so the next freed event can offer it again.
		if _, rerr := s.allocator.Release(ctx, appt.ID); rerr != nil {
			s.logger.Error(rerr, "failed to release orphaned promotion", "appointment_id", appt.ID.String())
		}
		return nil, nil
	}

	s.remove(ctx, entry.PatientID)
	if s.metrics != nil {
		s.metrics.WaitlistPromotions.Inc()
		s.metrics.WaitlistDepth.Set(float64(depth))
	}
	s.logger.Info("waitlist entry promoted",
		"patient_id", entry.PatientID.String(), "appointment_id", appt.ID.String())
	return appt, nil
}

func compatible(e *model.WaitlistEntry, evt *model.SlotFreedEvent) bool {
	if e.Status != model.WaitlistStatusWaiting {
		return false
	}
	if e.RequestedDoctorID != nil && *e.RequestedDoctorID != evt.DoctorID {
		return false
	}
	if e.RequestedDate != nil {
		diff := evt.StartTime.Sub(*e.RequestedDate)
		if diff < 0 {
			diff = -diff
		}
		if diff > compatWindowDays*24*time.Hour {
			return false
		}
	}
	if e.RequestedBand != "" && model.BandFor(evt.StartTime) != e.RequestedBand {
		return false
	}
	return true
}

// RecordContactAttempt increments the entry's attempt counter. Reaching the
// configured maximum transitions the entry to Expired and removes it; the
// returned flag tells the caller to surface the expiry.
func (s *Service) RecordContactAttempt(ctx context.Context, patientID uuid.UUID) (*model.WaitlistEntry, bool, error) {
	s.mu.Lock()
	entry, ok := s.byPatient[patientID]
	if !ok {
		s.mu.Unlock()
		return nil, false, apperrors.NotFound("waitlist entry", nil)
	}
	now := time.Now()
	entry.ContactAttempts++
	entry.LastContactAt = &now

	expired := entry.ContactAttempts >= s.cfg.MaxContactAttempts
	if expired {
		entry.Status = model.WaitlistStatusExpired
		s.removeLocked(entry)
	}
	depth := len(s.entries)
	cp := *entry
	s.mu.Unlock()

	if expired {
		s.remove(ctx, patientID)
		if s.metrics != nil {
			s.metrics.WaitlistExpiries.Inc()
			s.metrics.WaitlistDepth.Set(float64(depth))
		}
		s.logger.Info("waitlist entry expired at contact cap", "patient_id", patientID.String())
	} else {
		s.persist(ctx, &cp)
	}
	if s.metrics != nil {
		s.metrics.ContactAttempts.Inc()
	}
	return &cp, expired, nil
}

// Cancel removes the patient's entry. Idempotent: cancelling an absent entry
// is a no-op.
func (s *Service) Cancel(ctx context.Context, patientID uuid.UUID) error {
	s.mu.Lock()
	entry, ok := s.byPatient[patientID]
	if ok {
		s.removeLocked(entry)
	}
	depth := len(s.entries)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	s.remove(ctx, patientID)
	if s.metrics != nil {
		s.metrics.WaitlistDepth.Set(float64(depth))
	}
	s.logger.Info("waitlist entry cancelled", "patient_id", patientID.String())
	return nil
}

// Expire removes the patient's entry marking it expired. Idempotent.
func (s *Service) Expire(ctx context.Context, patientID uuid.UUID) error {
	s.mu.Lock()
	entry, ok := s.byPatient[patientID]
	if ok {
		entry.Status = model.WaitlistStatusExpired
		s.removeLocked(entry)
	}
	depth := len(s.entries)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	s.remove(ctx, patientID)
	if s.metrics != nil {
		s.metrics.WaitlistExpiries.Inc()
		s.metrics.WaitlistDepth.Set(float64(depth))
	}
	return nil
}

// Position returns the 1-based rank of the patient among waiting entries,
// 0 when absent.
func (s *Service) Position(patientID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.PatientID == patientID {
			return i + 1
		}
	}
	return 0
}

// Entries returns an ordered snapshot.
func (s *Service) Entries() []model.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WaitlistEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	return out
}

// DueForContact lists entries whose next outreach is due at the given time.
// Cadence scales with risk: high-risk patients are contacted most often.
func (s *Service) DueForContact(now time.Time) []model.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.WaitlistEntry
	for _, e := range s.entries {
		last := e.EnqueuedAt
		if e.LastContactAt != nil {
			last = *e.LastContactAt
		}
		if !now.Before(last.Add(s.cadence(e.NoShowProbability))) {
			due = append(due, *e)
		}
	}
	return due
}

func (s *Service) cadence(noShowProbability float64) time.Duration {
	switch s.classifier.LevelFor(noShowProbability) {
	case model.RiskLevelHigh:
		return s.cfg.HighContactEvery
	case model.RiskLevelMedium:
		return s.cfg.MediumContactEvery
	default:
		return s.cfg.LowContactEvery
	}
}

// Stats summarizes the queue for the status surface.
func (s *Service) Stats() model.WaitlistStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := model.WaitlistStats{
		TotalWaiting:  len(s.entries),
		RiskBreakdown: map[string]int{},
		MaxSize:       s.cfg.MaxSize,
	}
	for _, e := range s.entries {
		stats.RiskBreakdown[string(s.classifier.LevelFor(e.NoShowProbability))]++
	}
	if len(s.entries) > 0 {
		oldest := s.entries[0].EnqueuedAt
		for _, e := range s.entries[1:] {
			if e.EnqueuedAt.Before(oldest) {
				oldest = e.EnqueuedAt
			}
		}
		stats.OldestEnqueued = &oldest
	}
	return stats
}

// Restore reseeds the in-memory order from persisted entries at boot.
func (s *Service) Restore(entries []*model.WaitlistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.entries[:0]
	s.byPatient = make(map[uuid.UUID]*model.WaitlistEntry, len(entries))
	for _, e := range entries {
		if e.Seq > s.seq {
			s.seq = e.Seq
		}
		s.insertLocked(e)
	}
	if s.metrics != nil {
		s.metrics.WaitlistDepth.Set(float64(len(s.entries)))
	}
}

// removeLocked unlinks the entry from the ordered structure. Callers hold s.mu.
func (s *Service) removeLocked(entry *model.WaitlistEntry) {
	for i, e := range s.entries {
		if e.PatientID == entry.PatientID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	delete(s.byPatient, entry.PatientID)
}

func (s *Service) persist(ctx context.Context, entry *model.WaitlistEntry) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.logger.Error(err, "failed to persist waitlist entry", "patient_id", entry.PatientID.String())
	}
}

func (s *Service) remove(ctx context.Context, patientID uuid.UUID) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Delete(ctx, patientID); err != nil {
		s.logger.Error(err, "failed to remove persisted waitlist entry", "patient_id", patientID.String())
	}
}
