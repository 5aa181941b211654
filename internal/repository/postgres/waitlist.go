package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
)

func (r *waitlistRepository) Upsert(ctx context.Context, entry *model.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist_entries (
			patient_id, requested_doctor_id, requested_date, requested_band,
			no_show_probability, buffer_minutes, priority_score,
			contact_attempts, last_contact_at, enqueued_at, seq, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (patient_id) DO UPDATE SET
			contact_attempts = EXCLUDED.contact_attempts,
			last_contact_at = EXCLUDED.last_contact_at,
			priority_score = EXCLUDED.priority_score,
			status = EXCLUDED.status
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.PatientID,
		entry.RequestedDoctorID,
		entry.RequestedDate,
		entry.RequestedBand,
		entry.NoShowProbability,
		entry.BufferMinutes,
		entry.PriorityScore,
		entry.ContactAttempts,
		entry.LastContactAt,
		entry.EnqueuedAt,
		entry.Seq,
		entry.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert waitlist entry: %w", err)
	}
	return nil
}

func (r *waitlistRepository) Delete(ctx context.Context, patientID uuid.UUID) error {
	query := `
		DELETE FROM waitlist_entries
		WHERE patient_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, patientID); err != nil {
		return fmt.Errorf("failed to delete waitlist entry: %w", err)
	}
	return nil
}

func (r *waitlistRepository) ListWaiting(ctx context.Context) ([]*model.WaitlistEntry, error) {
	query := `
		SELECT patient_id, requested_doctor_id, requested_date, requested_band,
			   no_show_probability, buffer_minutes, priority_score,
			   contact_attempts, last_contact_at, enqueued_at, seq, status
		FROM waitlist_entries
		WHERE status = $1
		ORDER BY priority_score DESC, enqueued_at ASC, seq ASC
	`
	var entries []*model.WaitlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, model.WaitlistStatusWaiting); err != nil {
		return nil, fmt.Errorf("failed to list waiting entries: %w", err)
	}
	return entries, nil
}
