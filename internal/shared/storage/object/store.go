package object

import (
	"context"
	"errors"
	"io"
)

// Object describes a stored upload.
type Object struct {
	Key      string
	Size     int64
	MimeType string
}

// ObjectStore keeps uploaded medical records and their derived artifacts.
type ObjectStore interface {
	// Save writes r under namespace; the key gets a unique prefix on the sanitized file name.
	Save(ctx context.Context, namespace, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Put writes r at an exact key, replacing any previous object.
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
}

var (
	// ErrNotFound is returned by Open when no object exists at the key.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey rejects empty names and traversal attempts.
	ErrInvalidKey = errors.New("invalid storage key")
)
