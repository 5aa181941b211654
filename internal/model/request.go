package model

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one scheduling request.
type Outcome string

const (
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeWaitlisted Outcome = "waitlisted"
	OutcomeRejected   Outcome = "rejected"
)

// ScheduleRequest carries one appointment request through the orchestrator.
// NoShowProbability is supplied by the caller or resolved from the external
// prediction service before the orchestrator runs.
type ScheduleRequest struct {
	PatientID         uuid.UUID  `json:"patient_id" binding:"required"`
	NoShowProbability *float64   `json:"no_show_probability,omitempty"`
	Urgency           int        `json:"urgency" binding:"omitempty,min=1,max=5"`
	PreferredDoctorID *uuid.UUID `json:"preferred_doctor_id,omitempty"`
	PreferredDate     *time.Time `json:"preferred_date,omitempty"`
	PreferredBand     TimeBand   `json:"preferred_band,omitempty" binding:"omitempty,oneof=morning afternoon evening"`
}

// Decision is what the transport layer turns into a patient-facing
// notification: outcome plus enough detail to say when, with whom, and why
// not, as applicable.
type Decision struct {
	Outcome          Outcome         `json:"outcome"`
	Assessment       *RiskAssessment `json:"assessment,omitempty"`
	Appointment      *Appointment    `json:"appointment,omitempty"`
	WaitlistPosition int             `json:"waitlist_position,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	DecidedAt        time.Time       `json:"decided_at"`
}

// CreateScheduleRequest adds a doctor's slot grid for a date range.
type CreateScheduleRequest struct {
	DoctorID    uuid.UUID     `json:"doctor_id" binding:"required"`
	StartDate   time.Time     `json:"start_date" binding:"required"`
	EndDate     time.Time     `json:"end_date" binding:"required"`
	Hours       *WorkingHours `json:"working_hours,omitempty"`
	SlotMinutes int           `json:"slot_minutes" binding:"omitempty,min=5,max=240"`
}
