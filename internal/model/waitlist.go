package model

import (
	"time"

	"github.com/google/uuid"
)

type WaitlistStatus string

const (
	WaitlistStatusWaiting WaitlistStatus = "waiting"
	WaitlistStatusFilled  WaitlistStatus = "filled"
	WaitlistStatusExpired WaitlistStatus = "expired"
)

// WaitlistEntry holds a patient awaiting a slot. Entries are totally ordered
// by (PriorityScore desc, EnqueuedAt asc, Seq asc); Seq breaks same-instant
// enqueue ties so the order is never ambiguous.
type WaitlistEntry struct {
	PatientID         uuid.UUID      `db:"patient_id" json:"patient_id"`
	RequestedDoctorID *uuid.UUID     `db:"requested_doctor_id" json:"requested_doctor_id,omitempty"`
	RequestedDate     *time.Time     `db:"requested_date" json:"requested_date,omitempty"`
	RequestedBand     TimeBand       `db:"requested_band" json:"requested_band,omitempty"`
	NoShowProbability float64        `db:"no_show_probability" json:"no_show_probability"`
	BufferMinutes     int            `db:"buffer_minutes" json:"buffer_minutes"`
	PriorityScore     float64        `db:"priority_score" json:"priority_score"`
	ContactAttempts   int            `db:"contact_attempts" json:"contact_attempts"`
	LastContactAt     *time.Time     `db:"last_contact_at" json:"last_contact_at,omitempty"`
	EnqueuedAt        time.Time      `db:"enqueued_at" json:"enqueued_at"`
	Seq               uint64         `db:"seq" json:"-"`
	Status            WaitlistStatus `db:"status" json:"status"`
}

// WaitlistStats summarizes the current queue.
type WaitlistStats struct {
	TotalWaiting   int            `json:"total_waiting"`
	RiskBreakdown  map[string]int `json:"risk_breakdown"`
	OldestEnqueued *time.Time     `json:"oldest_enqueued,omitempty"`
	MaxSize        int            `json:"max_size"`
}

// ContactDueEvent is published when a waiting patient is due for an outreach
// attempt; the notification worker consumes it.
type ContactDueEvent struct {
	PatientID       uuid.UUID `json:"patient_id"`
	ContactAttempts int       `json:"contact_attempts"`
	Expired         bool      `json:"expired"`
	PriorityScore   float64   `json:"priority_score"`
}
