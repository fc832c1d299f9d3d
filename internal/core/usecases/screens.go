package usecases

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/core/ports"
	"github.com/samirrijal/geomeasure/internal/pkg/logging"
	"github.com/samirrijal/geomeasure/internal/pkg/metrics"
)

// MaxScreenIDLength bounds screen identifiers accepted from clients and sensor topics.
const MaxScreenIDLength = 64

// DefaultMaxScreens caps the registry unless SetMaxScreens says otherwise.
const DefaultMaxScreens = 10000

// ScreenRegistry owns one SessionOrchestrator per measurement screen.
type ScreenRegistry struct {
	mu      sync.RWMutex
	screens map[string]*SessionOrchestrator

	records     ports.RecordStore
	views       ports.ViewPublisher
	maxAccuracy float64
	maxScreens  int
	now         func() time.Time
}

// NewScreenRegistry creates an empty registry. views may be nil.
func NewScreenRegistry(records ports.RecordStore, views ports.ViewPublisher, maxAccuracy float64) *ScreenRegistry {
	return &ScreenRegistry{
		screens:     make(map[string]*SessionOrchestrator),
		records:     records,
		views:       views,
		maxAccuracy: maxAccuracy,
		maxScreens:  DefaultMaxScreens,
		now:         time.Now,
	}
}

// SetMaxScreens bounds the number of screens held at once. Opening a screen past the
// bound evicts the one untouched for longest. n <= 0 restores the default.
func (r *ScreenRegistry) SetMaxScreens(n int) {
	if n <= 0 {
		n = DefaultMaxScreens
	}
	r.mu.Lock()
	r.maxScreens = n
	r.mu.Unlock()
}

// SetClock replaces the time source used for idle tracking. Screens opened earlier
// keep the previous clock.
func (r *ScreenRegistry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Screen returns the orchestrator for id, creating an idle one on first use.
func (r *ScreenRegistry) Screen(id string) (*SessionOrchestrator, error) {
	id = strings.TrimSpace(id)
	if err := ValidateScreenID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	o, ok := r.screens[id]
	r.mu.RUnlock()
	if ok {
		return o, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.screens[id]; ok {
		return o, nil
	}
	for len(r.screens) >= r.maxScreens {
		r.evictOldestLocked()
	}
	o = NewSessionOrchestrator(id, r.records, r.views, r.maxAccuracy)
	o.now = r.now
	o.touch()
	r.screens[id] = o
	metrics.ActiveScreens.Set(float64(len(r.screens)))
	return o, nil
}

// Sweep drops every screen untouched for longer than maxIdle and returns how many
// it dropped. Their unsaved captures are discarded.
func (r *ScreenRegistry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	n := 0
	for id, o := range r.screens {
		if o.LastTouched().Before(cutoff) {
			delete(r.screens, id)
			n++
		}
	}
	if n > 0 {
		metrics.ScreensEvicted.WithLabelValues("idle").Add(float64(n))
		metrics.ActiveScreens.Set(float64(len(r.screens)))
	}
	return n
}

// RunJanitor sweeps idle screens every interval until ctx is done.
func (r *ScreenRegistry) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(maxIdle); n > 0 {
				logging.FromContext(ctx).Info("idle screens dropped", "count", n, "remaining", r.Len())
			}
		}
	}
}

// Len returns the number of open screens.
func (r *ScreenRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.screens)
}

func (r *ScreenRegistry) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, o := range r.screens {
		if t := o.LastTouched(); oldestID == "" || t.Before(oldest) {
			oldestID, oldest = id, t
		}
	}
	delete(r.screens, oldestID)
	metrics.ScreensEvicted.WithLabelValues("capacity").Inc()
}

// Lookup returns the orchestrator for id without creating one.
func (r *ScreenRegistry) Lookup(id string) (*SessionOrchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.screens[id]
	return o, ok
}

// View returns the session view of screen id. An unknown screen reports the idle
// view without being opened.
func (r *ScreenRegistry) View(id string) (domain.SessionView, error) {
	id = strings.TrimSpace(id)
	if err := ValidateScreenID(id); err != nil {
		return domain.SessionView{}, err
	}
	if o, ok := r.Lookup(id); ok {
		return o.View(), nil
	}
	return NewSessionOrchestrator(id, nil, nil, r.maxAccuracy).View(), nil
}

// Remove forgets a screen. Its unsaved capture is discarded.
func (r *ScreenRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.screens, id)
	metrics.ActiveScreens.Set(float64(len(r.screens)))
}

// IDs returns the known screen ids in sorted order.
func (r *ScreenRegistry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.screens))
	for id := range r.screens {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// HandleSample routes a sensor sample to its screen. Samples for unknown screens are
// dropped; a sensor never opens a session on its own.
func (r *ScreenRegistry) HandleSample(ctx context.Context, sample *domain.SensorSample) error {
	o, ok := r.Lookup(sample.ScreenID)
	if !ok {
		logging.FromContext(ctx).Debug("sensor sample for unknown screen", "screen", sample.ScreenID)
		metrics.SensorSamplesDropped.WithLabelValues("unknown_screen").Inc()
		return nil
	}
	o.AddSensorSample(ctx, *sample)
	return nil
}

// ValidateScreenID checks a client-supplied screen id.
func ValidateScreenID(id string) error {
	if id == "" {
		return &domain.ValidationError{Field: "screen", Message: "must not be empty"}
	}
	if len(id) > MaxScreenIDLength {
		return &domain.ValidationError{Field: "screen", Message: "too long"}
	}
	for _, c := range id {
		if !(c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return &domain.ValidationError{Field: "screen", Message: "may only contain letters, digits, '-' and '_'"}
		}
	}
	return nil
}
