package appointments

import (
	"context"
	"fmt"
	"time"
)

// DefaultConflictWindow is the minimum spacing between two bookings at one clinic.
const DefaultConflictWindow = 10 * time.Minute

// SlotLister reads the booked slot times of a clinic.
type SlotLister interface {
	ListSlotTimes(ctx context.Context, clinicID string) ([]time.Time, error)
}

// ConflictChecker rejects slots that fall too close to an existing booking.
type ConflictChecker struct {
	Slots  SlotLister
	Window time.Duration
}

// NewConflictChecker constructs a ConflictChecker. A non-positive window uses the default.
func NewConflictChecker(slots SlotLister, window time.Duration) *ConflictChecker {
	if window <= 0 {
		window = DefaultConflictWindow
	}
	return &ConflictChecker{Slots: slots, Window: window}
}

// Check reports whether proposed conflicts with a booked slot of clinicID.
// A failed read is returned as ErrConflictCheckFailed; the caller must not book.
func (c *ConflictChecker) Check(ctx context.Context, clinicID string, proposed time.Time) (bool, error) {
	booked, err := c.Slots.ListSlotTimes(ctx, clinicID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrConflictCheckFailed, err)
	}
	return HasConflict(booked, proposed, c.Window), nil
}

// HasConflict reports whether any booked time is strictly closer than window to proposed.
func HasConflict(booked []time.Time, proposed time.Time, window time.Duration) bool {
	for _, b := range booked {
		diff := proposed.Sub(b)
		if diff < 0 {
			diff = -diff
		}
		if diff < window {
			return true
		}
	}
	return false
}
