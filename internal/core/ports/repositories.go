package ports

import (
	"context"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// RecordStore persists annotation records.
//
// Create assigns a fresh id and never overwrites. Update is a full replace and fails
// with domain.ErrNotFound for a missing id. Delete is idempotent. List returns the
// newest records first.
type RecordStore interface {
	Create(ctx context.Context, rec *domain.AnnotationRecord) (string, error)
	Update(ctx context.Context, id string, rec *domain.AnnotationRecord) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.AnnotationRecord, error)
	List(ctx context.Context) ([]domain.AnnotationRecord, error)
}

// GroupStore persists the group catalogue. The default group is implicit and
// always reported by List.
type GroupStore interface {
	List(ctx context.Context) ([]domain.Group, error)
	Upsert(ctx context.Context, g domain.Group) error
	Delete(ctx context.Context, name string) error
}
