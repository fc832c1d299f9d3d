package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// timeLayout keeps lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const createAttempts = 3

const selectRecord = `SELECT id, kind, geometry, title, description, group_name, group_color, photo_ref, created_at, updated_at FROM annotations`

// RecordRepo implements ports.RecordStore on SQLite.
type RecordRepo struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// NewRecordRepo creates a new RecordRepo.
func NewRecordRepo(db *sql.DB) *RecordRepo {
	return &RecordRepo{db: db, now: time.Now, newID: uuid.NewString}
}

// Create inserts rec under a fresh id and never overwrites an existing row.
func (r *RecordRepo) Create(ctx context.Context, rec *domain.AnnotationRecord) (string, error) {
	geom, err := json.Marshal(rec.Geometry)
	if err != nil {
		return "", fmt.Errorf("failed to encode geometry: %w", err)
	}
	now := r.now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	for i := 0; i < createAttempts; i++ {
		id := r.newID()
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO annotations (id, kind, geometry, title, description, group_name, group_color, photo_ref, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO NOTHING`,
			id, string(rec.Kind), string(geom), rec.Title, rec.Description,
			rec.Group.Name, rec.Group.Color, nullString(rec.PhotoRef),
			created.UTC().Format(timeLayout), now.Format(timeLayout),
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert annotation: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to insert annotation: no free id after %d attempts", createAttempts)
}

// Update replaces record id or fails with domain.ErrNotFound.
func (r *RecordRepo) Update(ctx context.Context, id string, rec *domain.AnnotationRecord) error {
	geom, err := json.Marshal(rec.Geometry)
	if err != nil {
		return fmt.Errorf("failed to encode geometry: %w", err)
	}

	var created sql.NullString
	if !rec.CreatedAt.IsZero() {
		created = sql.NullString{String: rec.CreatedAt.UTC().Format(timeLayout), Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE annotations
		 SET kind = ?, geometry = ?, title = ?, description = ?, group_name = ?, group_color = ?,
		     photo_ref = ?, created_at = COALESCE(?, created_at), updated_at = ?
		 WHERE id = ?`,
		string(rec.Kind), string(geom), rec.Title, rec.Description, rec.Group.Name, rec.Group.Color,
		nullString(rec.PhotoRef), created, r.now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("annotation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes record id. Deleting a missing record is not an error.
func (r *RecordRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}
	return nil
}

// Get returns record id or domain.ErrNotFound.
func (r *RecordRepo) Get(ctx context.Context, id string) (*domain.AnnotationRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("annotation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query annotation: %w", err)
	}
	return rec, nil
}

// List returns every record, newest first.
func (r *RecordRepo) List(ctx context.Context) ([]domain.AnnotationRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectRecord+` ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.AnnotationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.AnnotationRecord, error) {
	var (
		rec              domain.AnnotationRecord
		kind, geom       string
		photo            sql.NullString
		created, updated string
	)
	if err := row.Scan(&rec.ID, &kind, &geom, &rec.Title, &rec.Description,
		&rec.Group.Name, &rec.Group.Color, &photo, &created, &updated); err != nil {
		return nil, err
	}

	rec.Kind = domain.AnnotationKind(kind)
	if err := json.Unmarshal([]byte(geom), &rec.Geometry); err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	if photo.Valid {
		ref := photo.String
		rec.PhotoRef = &ref
	}

	var err error
	if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
