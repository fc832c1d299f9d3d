package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// GroupRepo implements ports.GroupStore on SQLite.
type GroupRepo struct {
	db *sql.DB
}

// NewGroupRepo creates a new GroupRepo.
func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// List returns the default group followed by the stored groups by name.
func (r *GroupRepo) List(ctx context.Context) ([]domain.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, color FROM annotation_groups WHERE name <> ? ORDER BY name COLLATE NOCASE`,
		domain.DefaultGroupName)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Group{domain.DefaultGroup()}
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.Name, &g.Color); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
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
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO annotation_groups (name, color) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET color = excluded.color`,
		g.Name, g.Color)
	if err != nil {
		return fmt.Errorf("failed to upsert group: %w", err)
	}
	return nil
}

// Delete removes a group. The default group cannot be deleted.
func (r *GroupRepo) Delete(ctx context.Context, name string) error {
	if name == domain.DefaultGroupName {
		return domain.ErrProtectedGroup
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM annotation_groups WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}
