package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusFree   SlotStatus = "free"
	SlotStatusHeld   SlotStatus = "held"
	SlotStatusBooked SlotStatus = "booked"
)

// TimeBand partitions a working day for preference matching.
type TimeBand string

const (
	TimeBandMorning   TimeBand = "morning"
	TimeBandAfternoon TimeBand = "afternoon"
	TimeBandEvening   TimeBand = "evening"
)

// BandFor maps a slot start time to its time-of-day band. Morning runs until
// noon, afternoon until 17:00, evening afterwards.
func BandFor(t time.Time) TimeBand {
	switch h := t.Hour(); {
	case h < 12:
		return TimeBandMorning
	case h < 17:
		return TimeBandAfternoon
	default:
		return TimeBandEvening
	}
}

// Slot is one fixed time unit of a doctor's working day. A slot holds at most
// one appointment; Held marks buffer time owned by a preceding booking.
type Slot struct {
	ID        uuid.UUID  `json:"id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Status    SlotStatus `json:"status"`
}

// WorkingHours bound a doctor's day in whole hours, 24h clock.
type WorkingHours struct {
	Start int `json:"start" mapstructure:"start"`
	End   int `json:"end" mapstructure:"end"`
}

// SlotCriteria narrows a candidate search. All fields are optional except
// BufferMinutes, which callers always pass (zero means no buffer).
type SlotCriteria struct {
	DoctorID      *uuid.UUID
	DateFrom      *time.Time
	DateTo        *time.Time
	TimeBand      TimeBand
	BufferMinutes int
}

// DoctorSchedule records a materialized slot range so grids can be rebuilt
// after a restart.
type DoctorSchedule struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	DoctorID     uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	StartDate    time.Time    `db:"start_date" json:"start_date"`
	EndDate      time.Time    `db:"end_date" json:"end_date"`
	WorkingHours WorkingHours `db:"-" json:"working_hours"`
	SlotMinutes  int          `db:"slot_minutes" json:"slot_minutes"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// SlotFreedEvent flows from the slot optimizer to the waitlist manager
// whenever a cancellation returns a slot to the free pool.
type SlotFreedEvent struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	SlotID    uuid.UUID `json:"slot_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// SlotStats summarizes grid utilization.
type SlotStats struct {
	TotalSlots      int     `json:"total_slots"`
	FreeSlots       int     `json:"free_slots"`
	HeldSlots       int     `json:"held_slots"`
	BookedSlots     int     `json:"booked_slots"`
	UtilizationRate float64 `json:"utilization_rate"`
}
