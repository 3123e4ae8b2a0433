package intake

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when the text is absent or too short to analyze.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoJSONObject is returned when a provider reply holds no parseable JSON object.
	ErrNoJSONObject = errors.New("no json object in provider response")
	// ErrSchema is returned when a provider reply does not match the intake schema.
	ErrSchema = errors.New("intake schema mismatch")
)

func schemaErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}
