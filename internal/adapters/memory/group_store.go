package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// GroupStore implements ports.GroupStore in memory.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[string]domain.Group
}

// NewGroupStore creates a catalogue holding only the default group.
func NewGroupStore() *GroupStore {
	return &GroupStore{groups: make(map[string]domain.Group)}
}

// List returns the default group followed by the others sorted by name.
func (s *GroupStore) List(ctx context.Context) ([]domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Group, 0, len(s.groups)+1)
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return append([]domain.Group{domain.DefaultGroup()}, out...), nil
}

// Upsert adds or recolors a group. The default group is fixed.
func (s *GroupStore) Upsert(ctx context.Context, g domain.Group) error {
	if g.IsDefault() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.Name] = g
	return nil
}

// Delete removes a group. Deleting a missing group is not an error.
func (s *GroupStore) Delete(ctx context.Context, name string) error {
	if name == domain.DefaultGroupName {
		return domain.ErrProtectedGroup
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, name)
	return nil
}
