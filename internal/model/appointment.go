package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment maps one patient to exactly one booked slot. BufferMinutes is
// the trailing time actually held, which may be less than requested when the
// following slot was already taken.
type Appointment struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	PatientID     uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	SlotID        uuid.UUID         `db:"slot_id" json:"slot_id"`
	SlotStart     time.Time         `db:"slot_start" json:"slot_start"`
	SlotEnd       time.Time         `db:"slot_end" json:"slot_end"`
	BufferMinutes int               `db:"buffer_minutes" json:"buffer_minutes"`
	Status        AppointmentStatus `db:"status" json:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}
