package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/core/ports"
	"github.com/samirrijal/geomeasure/internal/pkg/logging"
	"github.com/samirrijal/geomeasure/internal/pkg/metrics"
)

const (
	recordListCacheKey = "records:list"
	recordGenCacheKey  = "records:gen"
	recordCacheTTL     = 300
	recordGenTTL       = 3600
)

// RecordFilter narrows a record listing. Zero fields match everything.
type RecordFilter struct {
	Kind  domain.AnnotationKind
	Group string
}

// Match reports whether rec passes the filter.
func (f RecordFilter) Match(rec *domain.AnnotationRecord) bool {
	if f.Kind != "" && rec.Kind != f.Kind {
		return false
	}
	if f.Group != "" && !strings.EqualFold(rec.Group.Name, f.Group) {
		return false
	}
	return true
}

// RecordService wraps a RecordStore with validation, a read cache, the group
// catalogue and record events. It satisfies ports.RecordStore itself so the
// session orchestrators persist through it.
type RecordService struct {
	store  ports.RecordStore
	groups ports.GroupStore
	cache  ports.CacheService
	events ports.EventPublisher
	now    func() time.Time
	seq    atomic.Uint64
}

// NewRecordService creates a new RecordService. groups, cache and events may be nil.
func NewRecordService(store ports.RecordStore, groups ports.GroupStore, cache ports.CacheService, events ports.EventPublisher) *RecordService {
	return &RecordService{store: store, groups: groups, cache: cache, events: events, now: time.Now}
}

// Create validates and stores a new record under its resolved group.
func (s *RecordService) Create(ctx context.Context, rec *domain.AnnotationRecord) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}
	group, isNew := s.resolveGroup(ctx, rec.Group)
	rec.Group = group
	id, err := s.store.Create(ctx, rec)
	if err != nil {
		return "", err
	}

	s.invalidate(ctx, id)
	if isNew {
		s.registerGroup(ctx, group)
	}
	stored := rec.Clone()
	stored.ID = id
	s.publish(ctx, domain.RecordCreated, id, stored)
	return id, nil
}

// Update validates and replaces record id.
func (s *RecordService) Update(ctx context.Context, id string, rec *domain.AnnotationRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	group, isNew := s.resolveGroup(ctx, rec.Group)
	rec.Group = group
	if err := s.store.Update(ctx, id, rec); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	if isNew {
		s.registerGroup(ctx, group)
	}
	stored := rec.Clone()
	stored.ID = id
	s.publish(ctx, domain.RecordUpdated, id, stored)
	return nil
}

// UpdateMetadata replaces the form fields of record id and keeps its geometry.
func (s *RecordService) UpdateMetadata(ctx context.Context, id string, md domain.Metadata) (*domain.AnnotationRecord, error) {
	meta, err := md.Normalize()
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Title = meta.Title
	rec.Description = meta.Description
	rec.Group = meta.Group
	rec.PhotoRef = meta.PhotoRef
	if err := s.Update(ctx, id, rec); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Delete removes record id. Deleting a missing record is not an error.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.publish(ctx, domain.RecordDeleted, id, nil)
	return nil
}

// Get returns record id.
func (s *RecordService) Get(ctx context.Context, id string) (*domain.AnnotationRecord, error) {
	cacheKey := "records:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var rec domain.AnnotationRecord
			if err := json.Unmarshal(data, &rec); err == nil {
				metrics.CacheHits.WithLabelValues("record").Inc()
				return &rec, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("record").Inc()
	}

	gen := s.generation(ctx)
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, cacheKey, rec, gen)
	return rec, nil
}

// List returns every record, newest first.
func (s *RecordService) List(ctx context.Context) ([]domain.AnnotationRecord, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, recordListCacheKey); err == nil {
			var recs []domain.AnnotationRecord
			if err := json.Unmarshal(data, &recs); err == nil {
				metrics.CacheHits.WithLabelValues("record_list").Inc()
				return recs, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("record_list").Inc()
	}

	gen := s.generation(ctx)
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, recordListCacheKey, recs, gen)
	return recs, nil
}

// Find returns the records matching f, newest first.
func (s *RecordService) Find(ctx context.Context, f RecordFilter) ([]domain.AnnotationRecord, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AnnotationRecord, 0, len(recs))
	for i := range recs {
		if f.Match(&recs[i]) {
			out = append(out, recs[i])
		}
	}
	return out, nil
}

// invalidate bumps the write generation, then drops the cached entries. A read
// that loaded the store before the bump discards its own fill.
func (s *RecordService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	gen := strconv.FormatInt(s.now().UnixNano(), 10) + "-" + strconv.FormatUint(s.seq.Add(1), 10)
	if err := s.cache.Set(ctx, recordGenCacheKey, []byte(gen), recordGenTTL); err != nil {
		logging.FromContext(ctx).Warn("bump record cache generation failed", "error", err)
	}
	_ = s.cache.Delete(ctx, "records:id:"+id)
	_ = s.cache.Delete(ctx, recordListCacheKey)
}

func (s *RecordService) generation(ctx context.Context) string {
	if s.cache == nil {
		return ""
	}
	data, err := s.cache.Get(ctx, recordGenCacheKey)
	if err != nil {
		return ""
	}
	return string(data)
}

// fill caches v under key unless a write landed since gen was read.
func (s *RecordService) fill(ctx context.Context, key string, v any, gen string) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, recordCacheTTL); err != nil {
		return
	}
	if s.generation(ctx) != gen {
		_ = s.cache.Delete(ctx, key)
	}
}

// resolveGroup settles the group a record is stored under. A group already in the
// catalogue keeps its catalogue color; a new group without a color gets the default
// color. isNew reports whether the group still has to be registered.
func (s *RecordService) resolveGroup(ctx context.Context, g domain.Group) (group domain.Group, isNew bool) {
	g.Name = strings.TrimSpace(g.Name)
	g.Color = strings.TrimSpace(g.Color)
	if g.Name == "" || g.IsDefault() {
		return domain.DefaultGroup(), false
	}
	if s.groups != nil {
		known, err := s.groups.List(ctx)
		if err != nil {
			logging.FromContext(ctx).Warn("list groups failed", "error", err)
		}
		for _, k := range known {
			if k.Name == g.Name {
				return k, false
			}
		}
	}
	if g.Color == "" {
		g.Color = domain.DefaultGroupColor
	}
	return g, true
}

func (s *RecordService) registerGroup(ctx context.Context, g domain.Group) {
	if s.groups == nil {
		return
	}
	if err := s.groups.Upsert(ctx, g); err != nil {
		logging.FromContext(ctx).Warn("register group failed", "group", g.Name, "error", err)
	}
}

func (s *RecordService) publish(ctx context.Context, typ domain.RecordEventType, id string, rec *domain.AnnotationRecord) {
	if s.events == nil {
		return
	}
	ev := &domain.RecordEvent{Type: typ, RecordID: id, Record: rec, Time: s.now()}
	if err := s.events.PublishRecordEvent(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("publish record event failed", "type", typ, "record_id", id, "error", err)
	}
}

func validateRecord(rec *domain.AnnotationRecord) error {
	if rec == nil {
		return &domain.ValidationError{Field: "record", Message: "must not be nil"}
	}
	if !rec.Kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, rec.Kind)
	}
	if n, need := len(rec.Geometry), rec.Kind.MinVertices(); n < need {
		return fmt.Errorf("%w: %s needs at least %d points, has %d", domain.ErrInsufficientVertices, rec.Kind, need, n)
	}
	if limit := rec.Kind.MaxVertices(); limit > 0 && len(rec.Geometry) > limit {
		return &domain.ValidationError{Field: "geometry", Message: fmt.Sprintf("a %s takes at most %d point, has %d", rec.Kind, limit, len(rec.Geometry))}
	}
	if err := domain.ValidatePoints(rec.Geometry); err != nil {
		return err
	}
	if strings.TrimSpace(rec.Title) == "" {
		return &domain.ValidationError{Field: "title", Message: "must not be empty"}
	}
	if c := strings.TrimSpace(rec.Group.Color); c != "" && !domain.ValidColor(c) {
		return &domain.ValidationError{Field: "group.color", Message: "must be #RRGGBB"}
	}
	return nil
}
