// Package kvstore provides the key-value persistence used for override snapshots.
// Every backend stores whole string values; writers always replace the full value.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a minimal key-value persistence interface
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
