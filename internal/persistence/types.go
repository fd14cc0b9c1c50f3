package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("object not found")

// Object is one stored blob with its string metadata.
type Object struct {
	Key       string
	Data      []byte
	Metadata  map[string]string
	UpdatedAt time.Time
}

// Store is a durable key/blob store. Keys are slash separated paths.
type Store interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, key string) (Object, error)
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
