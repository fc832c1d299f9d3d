package postgres

import (
	"context"
	"fmt"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// GroupRepo implements ports.GroupStore with pgx.
type GroupRepo struct {
	db *DB
}

// NewGroupRepo creates a new GroupRepo.
func NewGroupRepo(db *DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// List returns the default group followed by the stored groups by name.
func (r *GroupRepo) List(ctx context.Context) ([]domain.Group, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT name, color FROM annotation_groups
		WHERE name <> $1
		ORDER BY lower(name)
	`, domain.DefaultGroupName)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	out := []domain.Group{domain.DefaultGroup()}
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.Name, &g.Color); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Upsert inserts a group or updates its color.
func (r *GroupRepo) Upsert(ctx context.Context, g domain.Group) error {
	if g.IsDefault() {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO annotation_groups (name, color) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET color = EXCLUDED.color
	`, g.Name, g.Color)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

// Delete removes a group. The default group cannot be deleted.
func (r *GroupRepo) Delete(ctx context.Context, name string) error {
	if name == domain.DefaultGroupName {
		return domain.ErrProtectedGroup
	}
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM annotation_groups WHERE name = $1`, name); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}
