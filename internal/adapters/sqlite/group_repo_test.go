package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

func TestGroupRepo(t *testing.T) {
	repo := NewGroupRepo(openTestDB(t))
	ctx := context.Background()

	for _, g := range []domain.Group{
		{Name: "wells", Color: "#2196F3"},
		{Name: "Boundaries", Color: "#4CAF50"},
		{Name: "wells", Color: "#000000"},
		domain.DefaultGroup(),
	} {
		if err := repo.Upsert(ctx, g); err != nil {
			t.Fatalf("Upsert(%v) error = %v", g, err)
		}
	}

	groups, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 3 || !groups[0].IsDefault() || groups[1].Name != "Boundaries" || groups[2].Color != "#000000" {
		t.Errorf("unexpected groups %+v", groups)
	}

	if err := repo.Delete(ctx, "wells"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, domain.DefaultGroupName); !errors.Is(err, domain.ErrProtectedGroup) {
		t.Errorf("expected ErrProtectedGroup, got %v", err)
	}
	groups, _ = repo.List(ctx)
	if len(groups) != 2 {
		t.Errorf("expected 2 groups, got %+v", groups)
	}
}
