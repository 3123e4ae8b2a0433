package queue

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MessageVersion is stamped on every message this service produces.
const MessageVersion = 1

// Message asks a worker to summarize an appointment's stored document.
type Message struct {
	AppointmentID string `json:"appointmentId"`
	DocumentKey   string `json:"documentKey"`
	RequestID     string `json:"requestId"`
	EnqueuedAt    string `json:"enqueuedAt"`
	Version       int    `json:"version"`
}

// NewMessage builds a current-version message for a stored document.
func NewMessage(appointmentID, documentKey, requestID string, now time.Time) Message {
	return Message{
		AppointmentID: appointmentID,
		DocumentKey:   documentKey,
		RequestID:     requestID,
		EnqueuedAt:    now.UTC().Format(time.RFC3339),
		Version:       MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if strings.TrimSpace(msg.AppointmentID) == "" {
		return nil, errors.New("appointment id is required")
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message. Messages from older
// producers carry no version and are treated as version 1.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return msg, nil
}
