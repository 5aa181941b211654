package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
)

func (r *appointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, slot_id,
			slot_start, slot_end, buffer_minutes, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		appt.ID,
		appt.PatientID,
		appt.DoctorID,
		appt.SlotID,
		appt.SlotStart,
		appt.SlotEnd,
		appt.BufferMinutes,
		appt.Status,
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found")
	}

	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, slot_id,
			   slot_start, slot_end, buffer_minutes, status,
			   created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appt model.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

func (r *appointmentRepository) ListConfirmed(ctx context.Context) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, slot_id,
			   slot_start, slot_end, buffer_minutes, status,
			   created_at, updated_at
		FROM appointments
		WHERE status = $1
		ORDER BY slot_start
	`
	var appts []*model.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, model.AppointmentStatusConfirmed); err != nil {
		return nil, fmt.Errorf("failed to list confirmed appointments: %w", err)
	}
	return appts, nil
}
