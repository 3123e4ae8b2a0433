// Package workerproc turns document-job queue payloads into processor calls
// and tells the transport whether a failed message is worth redelivering.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"clinix-backend/internal/appointments"
	"clinix-backend/internal/queue"
	"clinix-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingAppointmentID indicates a message missing the appointment id.
type ErrMissingAppointmentID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingAppointmentID) Error() string { return "missing appointment id" }

// ErrUnsupportedVersion is returned for messages from a newer producer.
type ErrUnsupportedVersion struct {
	Version int
}

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported message version %d", e.Version)
}

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	AppointmentID string
	RequestID     string
	Err           error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process document"
	}
	return "process document: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// DocumentProcessor summarizes a stored appointment document.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, appointmentID, documentKey string) error
}

// Outcome tells the transport what to do with a handled message.
type Outcome int

const (
	// OutcomeDone means the message was processed and can be deleted.
	OutcomeDone Outcome = iota
	// OutcomeRetry leaves the message for redelivery.
	OutcomeRetry
	// OutcomeDrop deletes a message that can never succeed.
	OutcomeDrop
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeRetry:
		return "retry"
	case OutcomeDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// Classify maps a HandleMessage or Process error to an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeDone
	}
	var procErr ErrProcess
	if errors.As(err, &procErr) {
		// the appointment or its document is gone; redelivery cannot fix it
		if errors.Is(err, appointments.ErrNotFound) ||
			errors.Is(err, appointments.ErrNoDocument) ||
			errors.Is(err, appointments.ErrInvalidInput) {
			return OutcomeDrop
		}
		return OutcomeRetry
	}
	if errors.As(err, &ErrEmptyBody{}) ||
		errors.As(err, &ErrDecode{}) ||
		errors.As(err, &ErrMissingAppointmentID{}) ||
		errors.As(err, &ErrUnsupportedVersion{}) {
		return OutcomeDrop
	}
	return OutcomeRetry
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.AppointmentID) == "" {
		return msg, meta, ErrMissingAppointmentID{Meta: meta, RequestID: msg.RequestID}
	}
	if msg.Version > queue.MessageVersion {
		return msg, meta, ErrUnsupportedVersion{Version: msg.Version}
	}
	return msg, meta, nil
}

// Process runs the processor for an already parsed message, carrying the
// producer's request id into the processing context.
func Process(ctx context.Context, processor DocumentProcessor, msg queue.Message) error {
	if processor == nil {
		return errors.New("document processor not configured")
	}
	if strings.TrimSpace(msg.AppointmentID) == "" {
		return ErrMissingAppointmentID{RequestID: msg.RequestID}
	}
	if msg.RequestID != "" {
		ctx = telemetry.WithRequestID(ctx, msg.RequestID)
	}
	if err := processor.ProcessDocument(ctx, msg.AppointmentID, msg.DocumentKey); err != nil {
		return ErrProcess{AppointmentID: msg.AppointmentID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

// HandleMessage parses, validates and processes a message payload.
func HandleMessage(ctx context.Context, processor DocumentProcessor, body string) error {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	return Process(ctx, processor, msg)
}
