package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the subset of object storage the payload archive needs.
type ObjectStore interface {
	// Put writes body under key, replacing any existing object
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// Get reads the object at key
	Get(ctx context.Context, key string) ([]byte, error)
}
