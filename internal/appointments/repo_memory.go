package appointments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores appointments in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	byID     map[string]Appointment
	byClinic map[string][]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:     make(map[string]Appointment),
		byClinic: make(map[string][]string),
	}
}

// Create stores the appointment.
func (r *MemoryRepo) Create(ctx context.Context, appt Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[appt.ID] = appt
	r.byClinic[appt.ClinicID] = append(r.byClinic[appt.ClinicID], appt.ID)
	return nil
}

// GetByID returns an appointment by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Appointment, error) {
	if err := ctx.Err(); err != nil {
		return Appointment{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.byID[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return appt, nil
}

// ListSlotTimes returns the booked slot times for a clinic in ascending order.
func (r *MemoryRepo) ListSlotTimes(ctx context.Context, clinicID string) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	ids := r.byClinic[clinicID]
	slots := make([]time.Time, 0, len(ids))
	for _, id := range ids {
		slots = append(slots, r.byID[id].SlotTime)
	}
	r.mu.RUnlock()

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots, nil
}

// UpdateDocument attaches document results to an existing appointment.
func (r *MemoryRepo) UpdateDocument(ctx context.Context, id, documentPath, summary string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if documentPath != "" {
		p := documentPath
		appt.DocumentPath = &p
	}
	if summary != "" {
		s := summary
		appt.DocumentSummary = &s
	}
	appt.UpdatedAt = time.Now().UTC()
	r.byID[id] = appt
	return nil
}
