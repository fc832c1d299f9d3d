package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Migrate is idempotent.
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	return db
}

func testRecord(title string) *domain.AnnotationRecord {
	return &domain.AnnotationRecord{
		Kind:        domain.KindField,
		Geometry:    []domain.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 0}},
		Title:       title,
		Description: "surveyed",
		Group:       domain.Group{Name: "Farm", Color: "#4CAF50"},
	}
}

func TestRecordRepo_CreateGet(t *testing.T) {
	repo := NewRecordRepo(openTestDB(t))
	ctx := context.Background()

	photo := "photos/plot.jpg"
	rec := testRecord("Plot")
	rec.PhotoRef = &photo

	id, err := repo.Create(ctx, rec)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != id || got.Kind != domain.KindField || got.Title != "Plot" || got.Description != "surveyed" {
		t.Errorf("unexpected record %+v", got)
	}
	if len(got.Geometry) != 3 || got.Geometry[1] != (domain.GeoPoint{Lat: 0, Lng: 1}) {
		t.Errorf("geometry not preserved: %+v", got.Geometry)
	}
	if got.PhotoRef == nil || *got.PhotoRef != photo {
		t.Errorf("photo ref not preserved: %v", got.PhotoRef)
	}
	if got.Group.Name != "Farm" || got.Group.Color != "#4CAF50" {
		t.Errorf("group not preserved: %+v", got.Group)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestRecordRepo_CreateRetriesOnCollision(t *testing.T) {
	repo := NewRecordRepo(openTestDB(t))
	ids := []string{"fixed", "fixed", "other"}
	repo.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	ctx := context.Background()

	first, err := repo.Create(ctx, testRecord("a"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.Create(ctx, testRecord("b"))
	if err != nil {
		t.Fatal(err)
	}
	if first != "fixed" || second != "other" {
		t.Fatalf("got ids %s, %s", first, second)
	}
	a, _ := repo.Get(ctx, "fixed")
	if a.Title != "a" {
		t.Errorf("collision overwrote record: %+v", a)
	}
}

func TestRecordRepo_UpdatePreservesCreatedAt(t *testing.T) {
	repo := NewRecordRepo(openTestDB(t))
	ctx := context.Background()

	id, _ := repo.Create(ctx, testRecord("Plot"))
	orig, _ := repo.Get(ctx, id)

	repl := testRecord("Plot v2")
	repl.Geometry = append(repl.Geometry, domain.GeoPoint{Lat: 1, Lng: 1})
	if err := repo.Update(ctx, id, repl); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.Get(ctx, id)
	if got.Title != "Plot v2" || len(got.Geometry) != 4 {
		t.Errorf("unexpected record %+v", got)
	}
	if !got.CreatedAt.Equal(orig.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", orig.CreatedAt, got.CreatedAt)
	}
}

func TestRecordRepo_NotFound(t *testing.T) {
	repo := NewRecordRepo(openTestDB(t))
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := repo.Update(ctx, "missing", testRecord("x")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}

	id, _ := repo.Create(ctx, testRecord("gone"))
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, id); err != nil {
		t.Errorf("second delete should succeed, got %v", err)
	}
	if err := repo.Update(ctx, id, testRecord("late")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update after delete: expected ErrNotFound, got %v", err)
	}
}

func TestRecordRepo_ListNewestFirst(t *testing.T) {
	repo := NewRecordRepo(openTestDB(t))
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, testRecord(fmt.Sprintf("r%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].Title != "r2" || list[2].Title != "r0" {
		t.Errorf("unexpected order: %v, %v, %v", list[0].Title, list[1].Title, list[2].Title)
	}
}

func TestRecordRepo_ListEmpty(t *testing.T) {
	repo := NewRecordRepo(openTestDB(t))
	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", list)
	}
}

func TestRecordRepo_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT id, kind, geometry(.+) FROM annotations WHERE id = \?`).
		WithArgs("abc").
		WillReturnError(sqlmock.ErrCancelled)

	repo := NewRecordRepo(db)
	_, err = repo.Get(context.Background(), "abc")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected a driver error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordRepo_UpdateNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`UPDATE annotations`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRecordRepo(db)
	if err := repo.Update(context.Background(), "abc", testRecord("x")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordRepo_CorruptGeometry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := "2026-04-02T09:00:00.000000000Z"
	rows := sqlmock.NewRows([]string{"id", "kind", "geometry", "title", "description", "group_name", "group_color", "photo_ref", "created_at", "updated_at"}).
		AddRow("abc", "field", "{not json", "Plot", "", "Farm", "#4CAF50", nil, ts, ts)
	mock.ExpectQuery(`SELECT id, kind, geometry(.+) FROM annotations ORDER BY`).
		WillReturnRows(rows)

	repo := NewRecordRepo(db)
	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}
