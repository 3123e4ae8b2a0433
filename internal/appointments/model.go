package appointments

import (
	"io"
	"time"

	"clinix-backend/internal/intake"
)

// StatusBooked is the only status a created appointment carries.
const StatusBooked = "booked"

// Patient identifies who the appointment is for.
type Patient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Appointment is a persisted booking.
type Appointment struct {
	ID              string        `json:"id"`
	ClinicID        string        `json:"clinic"`
	Patient         Patient       `json:"patient"`
	SlotTime        time.Time     `json:"slotTime"`
	Symptoms        string        `json:"symptoms"`
	AIMeta          intake.Result `json:"aiMeta"`
	DocumentSummary *string       `json:"documentSummary,omitempty"`
	DocumentPath    *string       `json:"documentPath,omitempty"`
	Status          string        `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Upload is an attached medical record streamed from the request.
type Upload struct {
	FileName string
	Reader   io.Reader
}

// BookingRequest carries everything needed to create an appointment.
type BookingRequest struct {
	ClinicID string
	SlotTime time.Time
	Name     string
	Email    string
	Symptoms string
	// AIMeta is the caller's earlier intake result, if any.
	AIMeta   *intake.Result
	Document *Upload
}

// BookedSlot is the public view of an occupied slot.
type BookedSlot struct {
	SlotTime time.Time `json:"slotTime"`
}
