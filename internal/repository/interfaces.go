package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
)

// AppointmentRepository records appointments so they can be reconstructed
// after a restart. The slot grid stays authoritative for conflict decisions.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *model.Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	ListConfirmed(ctx context.Context) ([]*model.Appointment, error)
}

// WaitlistRepository mirrors the in-memory waitlist for restart recovery.
type WaitlistRepository interface {
	Upsert(ctx context.Context, entry *model.WaitlistEntry) error
	Delete(ctx context.Context, patientID uuid.UUID) error
	ListWaiting(ctx context.Context) ([]*model.WaitlistEntry, error)
}

// ScheduleRepository records materialized doctor schedules so grids can be
// rebuilt at boot.
type ScheduleRepository interface {
	Create(ctx context.Context, sched *model.DoctorSchedule) error
	List(ctx context.Context) ([]*model.DoctorSchedule, error)
}
