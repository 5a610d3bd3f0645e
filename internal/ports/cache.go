package ports

import (
	"context"
	"time"
)

// Cache is a best-effort key-value capability for usecases. The intake
// pipeline uses it to remember rendered page images across retries; a miss
// is never an error, only extra work.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
