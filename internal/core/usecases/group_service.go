package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/core/ports"
)

// GroupService manages the group catalogue.
type GroupService struct {
	groups  ports.GroupStore
	records ports.RecordStore
}

// NewGroupService creates a new GroupService.
func NewGroupService(groups ports.GroupStore, records ports.RecordStore) *GroupService {
	return &GroupService{groups: groups, records: records}
}

// List returns all groups, the default group first.
func (s *GroupService) List(ctx context.Context) ([]domain.Group, error) {
	return s.groups.List(ctx)
}

// Create adds or recolors a group.
func (s *GroupService) Create(ctx context.Context, g domain.Group) (domain.Group, error) {
	g.Name = strings.TrimSpace(g.Name)
	g.Color = strings.TrimSpace(g.Color)
	if g.Name == "" {
		return g, &domain.ValidationError{Field: "name", Message: "must not be empty"}
	}
	if g.IsDefault() {
		return domain.DefaultGroup(), nil
	}
	if g.Color == "" {
		g.Color = domain.DefaultGroupColor
	}
	if !domain.ValidColor(g.Color) {
		return g, &domain.ValidationError{Field: "color", Message: "must be #RRGGBB"}
	}
	if err := s.groups.Upsert(ctx, g); err != nil {
		return g, fmt.Errorf("upsert group %q: %w", g.Name, err)
	}
	return g, nil
}

// Delete removes a group after moving its records to the default group. It returns
// the number of records reassigned.
func (s *GroupService) Delete(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == domain.DefaultGroupName {
		return 0, domain.ErrProtectedGroup
	}

	recs, err := s.records.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	moved := 0
	for i := range recs {
		rec := &recs[i]
		if rec.Group.Name != name {
			continue
		}
		rec.Group = domain.DefaultGroup()
		if err := s.records.Update(ctx, rec.ID, rec); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return moved, fmt.Errorf("reassign record %s: %w", rec.ID, err)
		}
		moved++
	}

	if err := s.groups.Delete(ctx, name); err != nil {
		return moved, fmt.Errorf("delete group %q: %w", name, err)
	}
	return moved, nil
}
