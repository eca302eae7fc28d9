package persist

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/entcache/record"
)

// ErrNotFound may be returned by Store.Load for a missing record. A nil
// record with a nil error means the same.
var ErrNotFound = errors.New("persist: record not found")

// Store is the durable store. Put must write the whole record atomically;
// two racing writers of the same key resolve last-write-wins.
type Store interface {
	Load(ctx context.Context, schema *record.Schema, key string) (*record.Record, error)
	Put(ctx context.Context, rec *record.Record) error
	Delete(ctx context.Context, kind, key string) error
}
