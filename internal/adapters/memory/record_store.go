// Package memory provides in-process implementations of the storage ports.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

type entry struct {
	rec *domain.AnnotationRecord
	seq uint64
}

// RecordStore implements ports.RecordStore in memory.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]entry
	seq     uint64
	now     func() time.Time
	newID   func() string
}

// NewRecordStore creates an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]entry),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Create stores a copy of rec under a fresh id and returns the id.
func (s *RecordStore) Create(ctx context.Context, rec *domain.AnnotationRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("create record: nil record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for {
		if _, taken := s.records[id]; !taken {
			break
		}
		id = s.newID()
	}

	c := rec.Clone()
	c.ID = id
	now := s.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	s.seq++
	s.records[id] = entry{rec: c, seq: s.seq}
	return id, nil
}

// Update replaces the record stored under id.
func (s *RecordStore) Update(ctx context.Context, id string, rec *domain.AnnotationRecord) error {
	if rec == nil {
		return fmt.Errorf("update record: nil record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[id]
	if !ok {
		return fmt.Errorf("update record %s: %w", id, domain.ErrNotFound)
	}

	c := rec.Clone()
	c.ID = id
	if c.CreatedAt.IsZero() {
		c.CreatedAt = old.rec.CreatedAt
	}
	c.UpdatedAt = s.now().UTC()
	s.records[id] = entry{rec: c, seq: old.seq}
	return nil
}

// Delete removes the record. Deleting a missing id is not an error.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Get returns a copy of the record.
func (s *RecordStore) Get(ctx context.Context, id string) (*domain.AnnotationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("get record %s: %w", id, domain.ErrNotFound)
	}
	return e.rec.Clone(), nil
}

// List returns copies of all records, most recently created first.
func (s *RecordStore) List(ctx context.Context) ([]domain.AnnotationRecord, error) {
	s.mu.RLock()
	entries := make([]entry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].rec, entries[j].rec
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	out := make([]domain.AnnotationRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e.rec.Clone())
	}
	return out, nil
}
