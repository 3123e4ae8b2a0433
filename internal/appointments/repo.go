package appointments

import (
	"context"
	"time"
)

// Repo defines persistence operations for appointments.
type Repo interface {
	Create(ctx context.Context, appt Appointment) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	ListSlotTimes(ctx context.Context, clinicID string) ([]time.Time, error)
	// UpdateDocument records the stored document path. An empty summary leaves it unset.
	UpdateDocument(ctx context.Context, id, documentPath, summary string) error
}
