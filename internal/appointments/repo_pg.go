package appointments

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new appointment.
func (r *PGRepo) Create(ctx context.Context, appt Appointment) error {
	const query = `
INSERT INTO appointments (
	id, clinic_id, patient_name, patient_email, slot_time, symptoms,
	ai_summary, ai_urgency, ai_preferred_date_time, ai_source,
	status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	var preferred sql.NullString
	if appt.AIMeta.PreferredDateTime != nil {
		preferred = sql.NullString{String: *appt.AIMeta.PreferredDateTime, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx, query,
		appt.ID,
		appt.ClinicID,
		appt.Patient.Name,
		appt.Patient.Email,
		appt.SlotTime,
		appt.Symptoms,
		appt.AIMeta.Summary,
		appt.AIMeta.Urgency,
		preferred,
		appt.AIMeta.Source,
		appt.Status,
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	return err
}

// GetByID returns an appointment by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Appointment, error) {
	const query = `
SELECT id, clinic_id, patient_name, patient_email, slot_time, symptoms,
       ai_summary, ai_urgency, ai_preferred_date_time, ai_source,
       document_summary, document_path, status, created_at, updated_at
FROM appointments
WHERE id = $1
LIMIT 1`
	var a Appointment
	var preferred sql.NullString
	var documentSummary sql.NullString
	var documentPath sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.ClinicID,
		&a.Patient.Name,
		&a.Patient.Email,
		&a.SlotTime,
		&a.Symptoms,
		&a.AIMeta.Summary,
		&a.AIMeta.Urgency,
		&preferred,
		&a.AIMeta.Source,
		&documentSummary,
		&documentPath,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	if preferred.Valid {
		a.AIMeta.PreferredDateTime = &preferred.String
	}
	if documentSummary.Valid {
		a.DocumentSummary = &documentSummary.String
	}
	if documentPath.Valid {
		a.DocumentPath = &documentPath.String
	}
	a.SlotTime = a.SlotTime.UTC()
	return a, nil
}

// ListSlotTimes returns the booked slot times for a clinic in ascending order.
func (r *PGRepo) ListSlotTimes(ctx context.Context, clinicID string) ([]time.Time, error) {
	const query = `
SELECT slot_time
FROM appointments
WHERE clinic_id = $1
ORDER BY slot_time ASC`
	rows, err := r.DB.QueryContext(ctx, query, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := []time.Time{}
	for rows.Next() {
		var slot time.Time
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// UpdateDocument attaches document results to an existing appointment.
func (r *PGRepo) UpdateDocument(ctx context.Context, id, documentPath, summary string) error {
	const query = `
UPDATE appointments
SET document_path = COALESCE(NULLIF($2, ''), document_path),
    document_summary = COALESCE(NULLIF($3, ''), document_summary),
    updated_at = now()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, documentPath, summary)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
