// Package metadata stores small key/value bookkeeping for the client,
// such as the time of the last successful sync.
package metadata

import (
	"context"
	"time"
)

// KeyLastSyncAt holds the RFC3339 time of the last online session that
// completed reconciliation.
const KeyLastSyncAt = "last_sync_at"

// Repository is a key/value table. Get returns nil, nil for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
}

// GetTime reads a time stored by SetTime. A missing key yields the zero time.
func GetTime(ctx context.Context, r Repository, key string) (time.Time, error) {
	v, err := r.Get(ctx, key)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, string(v))
}

// SetTime stores t under key in RFC3339 form.
func SetTime(ctx context.Context, r Repository, key string, t time.Time) error {
	return r.Set(ctx, key, []byte(t.UTC().Format(time.RFC3339Nano)))
}
