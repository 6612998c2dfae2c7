package store

import (
	"context"
	"errors"

	"github.com/fraywing/threadcast/internal/models"
)

// ErrRecordExists is returned by PutIfAbsent when a record for the slug is
// already persisted.
var ErrRecordExists = errors.New("publish record already exists")

// RecordStore persists the per-slug publish markers that outlive a pipeline
// invocation. PutIfAbsent must be atomic: two concurrent runs for the same
// slug must not both observe "no record" and both publish.
type RecordStore interface {
	// Get returns the record for slug, or (nil, nil) when none exists.
	Get(ctx context.Context, slug string) (*models.PublishRecord, error)

	// PutIfAbsent persists the record only when no record exists for its
	// slug, returning ErrRecordExists otherwise.
	PutIfAbsent(ctx context.Context, record *models.PublishRecord) error

	// Put persists the record, replacing any existing record for its slug.
	// Used to finalize an attempt that already claimed the slug.
	Put(ctx context.Context, record *models.PublishRecord) error

	// List returns all records, most recent first.
	List(ctx context.Context) ([]*models.PublishRecord, error)
}
