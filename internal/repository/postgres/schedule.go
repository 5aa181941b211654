package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/scheduler-api/internal/model"
)

func (r *scheduleRepository) Create(ctx context.Context, sched *model.DoctorSchedule) error {
	query := `
		INSERT INTO doctor_schedules (
			id, doctor_id, start_date, end_date,
			hours_start, hours_end, slot_minutes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		sched.ID,
		sched.DoctorID,
		sched.StartDate,
		sched.EndDate,
		sched.WorkingHours.Start,
		sched.WorkingHours.End,
		sched.SlotMinutes,
		sched.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create doctor schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) List(ctx context.Context) ([]*model.DoctorSchedule, error) {
	query := `
		SELECT id, doctor_id, start_date, end_date,
			   hours_start, hours_end, slot_minutes, created_at
		FROM doctor_schedules
		ORDER BY created_at
	`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor schedules: %w", err)
	}
	defer rows.Close()

	var scheds []*model.DoctorSchedule
	for rows.Next() {
		var s model.DoctorSchedule
		if err := rows.Scan(
			&s.ID, &s.DoctorID, &s.StartDate, &s.EndDate,
			&s.WorkingHours.Start, &s.WorkingHours.End, &s.SlotMinutes, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan doctor schedule: %w", err)
		}
		scheds = append(scheds, &s)
	}
	return scheds, rows.Err()
}
