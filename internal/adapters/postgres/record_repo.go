package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

const createAttempts = 3

const recordColumns = `id, kind, geometry, title, description, group_name, group_color, photo_ref, created_at, updated_at`

// RecordRepo implements ports.RecordStore with pgx.
type RecordRepo struct {
	db    *DB
	newID func() string
}

// NewRecordRepo creates a new RecordRepo.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db, newID: uuid.NewString}
}

// Create inserts rec under a fresh id. An id collision retries with a new id instead
// of overwriting.
func (r *RecordRepo) Create(ctx context.Context, rec *domain.AnnotationRecord) (string, error) {
	geom, err := json.Marshal(rec.Geometry)
	if err != nil {
		return "", fmt.Errorf("encode geometry: %w", err)
	}
	now := time.Now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	for i := 0; i < createAttempts; i++ {
		id := r.newID()
		tag, err := r.db.Pool.Exec(ctx, `
			INSERT INTO annotations (`+recordColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING
		`, id, string(rec.Kind), geom, rec.Title, rec.Description,
			rec.Group.Name, rec.Group.Color, rec.PhotoRef, created, now)
		if err != nil {
			return "", fmt.Errorf("insert annotation: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return id, nil
		}
	}
	return "", fmt.Errorf("insert annotation: no free id after %d attempts", createAttempts)
}

// Update replaces record id. A missing or concurrently deleted record yields domain.ErrNotFound.
func (r *RecordRepo) Update(ctx context.Context, id string, rec *domain.AnnotationRecord) error {
	geom, err := json.Marshal(rec.Geometry)
	if err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE annotations
		SET kind = $2, geometry = $3, title = $4, description = $5,
		    group_name = $6, group_color = $7, photo_ref = $8,
		    created_at = COALESCE($9, created_at), updated_at = now()
		WHERE id = $1
	`, id, string(rec.Kind), geom, rec.Title, rec.Description,
		rec.Group.Name, rec.Group.Color, rec.PhotoRef, nullTime(rec.CreatedAt))
	if err != nil {
		if isInvalidUUID(err) {
			return fmt.Errorf("annotation %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("update annotation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("annotation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes record id. Deleting a missing record is not an error.
func (r *RecordRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM annotations WHERE id = $1`, id); err != nil {
		if isInvalidUUID(err) {
			return nil
		}
		return fmt.Errorf("delete annotation: %w", err)
	}
	return nil
}

// Get returns record id.
func (r *RecordRepo) Get(ctx context.Context, id string) (*domain.AnnotationRecord, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM annotations WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, fmt.Errorf("annotation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get annotation: %w", err)
	}
	return rec, nil
}

// List returns all records, newest first.
func (r *RecordRepo) List(ctx context.Context) ([]domain.AnnotationRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM annotations
		ORDER BY created_at DESC, seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	out := []domain.AnnotationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*domain.AnnotationRecord, error) {
	var (
		rec  domain.AnnotationRecord
		kind string
		geom []byte
	)
	if err := row.Scan(&rec.ID, &kind, &geom, &rec.Title, &rec.Description,
		&rec.Group.Name, &rec.Group.Color, &rec.PhotoRef, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Kind = domain.AnnotationKind(kind)
	if err := json.Unmarshal(geom, &rec.Geometry); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return &rec, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// isInvalidUUID reports a malformed id, which can never name a stored record.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
