package appointments

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrSlotConflict        = errors.New("slot already booked")
	ErrConflictCheckFailed = errors.New("conflict check failed")
	ErrNoDocument          = errors.New("appointment has no document")
)
