package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/core/ports"
	"github.com/samirrijal/geomeasure/internal/core/session"
	"github.com/samirrijal/geomeasure/internal/pkg/geospatial"
	"github.com/samirrijal/geomeasure/internal/pkg/logging"
	"github.com/samirrijal/geomeasure/internal/pkg/metrics"
	"github.com/samirrijal/geomeasure/internal/pkg/readout"
	"github.com/samirrijal/geomeasure/internal/pkg/telemetry"
)

// Mode is the single active-mode slot of a measurement screen.
type Mode string

const (
	ModeIdle    Mode = "idle"
	ModeCapture Mode = "capture"
	ModePreview Mode = "preview"
)

// SingleMarkerPadding is the half-size in meters of the box fitted around a lone point.
const SingleMarkerPadding = 50.0

// SessionOrchestrator binds one capture session to a screen, the record store and
// the view publisher. All methods are safe for concurrent use; operations on one
// orchestrator are serialised.
type SessionOrchestrator struct {
	mu sync.Mutex

	screenID    string
	records     ports.RecordStore
	views       ports.ViewPublisher
	maxAccuracy float64

	sess    *session.Session
	mode    Mode
	editing *domain.AnnotationRecord

	preview          *domain.AnnotationRecord
	previewMeasure   *domain.Measurement
	previewPerimeter *domain.Measurement

	now     func() time.Time
	touched atomic.Int64 // unix nanos of the last command or accepted sample
}

// SaveResult is the outcome of a successful Save.
type SaveResult struct {
	Record *domain.AnnotationRecord
	// Created is true when the save inserted a new record, false when it replaced
	// the record being edited.
	Created bool
}

// NewSessionOrchestrator creates an idle orchestrator. views may be nil.
func NewSessionOrchestrator(screenID string, records ports.RecordStore, views ports.ViewPublisher, maxAccuracy float64) *SessionOrchestrator {
	o := &SessionOrchestrator{
		screenID:    screenID,
		records:     records,
		views:       views,
		maxAccuracy: maxAccuracy,
		mode:        ModeIdle,
		now:         time.Now,
	}
	o.sess = o.newSession()
	o.touch()
	return o
}

// LastTouched returns when the screen last received a command or an accepted sample.
func (o *SessionOrchestrator) LastTouched() time.Time {
	return time.Unix(0, o.touched.Load())
}

func (o *SessionOrchestrator) touch() {
	o.touched.Store(o.now().UnixNano())
}

// ScreenID returns the screen this orchestrator serves.
func (o *SessionOrchestrator) ScreenID() string { return o.screenID }

// View returns the current session view.
func (o *SessionOrchestrator) View() domain.SessionView {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked()
}

// BeginNew starts capturing a new annotation of kind. A running capture refuses;
// an open preview is closed.
func (o *SessionOrchestrator) BeginNew(ctx context.Context, kind domain.AnnotationKind) (domain.SessionView, error) {
	return o.do(ctx, "begin", func(ctx context.Context) error {
		if err := o.sess.Begin(kind); err != nil {
			return err
		}
		o.enterCapture(nil)
		return nil
	}, attribute.String(telemetry.AttrKind, string(kind)))
}

// SwitchMode abandons whatever is active and begins kind with an empty buffer.
func (o *SessionOrchestrator) SwitchMode(ctx context.Context, kind domain.AnnotationKind) (domain.SessionView, error) {
	return o.do(ctx, "switch", func(ctx context.Context) error {
		if !kind.Valid() {
			return fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
		}
		o.sess.Cancel()
		if err := o.sess.Begin(kind); err != nil {
			return err
		}
		o.enterCapture(nil)
		return nil
	}, attribute.String(telemetry.AttrKind, string(kind)))
}

// BeginEdit loads record id into a new capture session. Saving it updates the record.
func (o *SessionOrchestrator) BeginEdit(ctx context.Context, id string) (domain.SessionView, error) {
	return o.do(ctx, "edit", func(ctx context.Context) error {
		if o.mode == ModeCapture {
			return o.refuse("edit", "exit the current capture first")
		}
		rec, err := o.records.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("load record %s: %w", id, err)
		}
		sess, err := session.NewCapturing(rec.Kind, rec.Geometry)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		sess.MaxAccuracy = o.maxAccuracy
		o.sess = sess
		o.enterCapture(rec)
		return nil
	}, attribute.String(telemetry.AttrRecord, id))
}

// AddPoint appends a tapped vertex.
func (o *SessionOrchestrator) AddPoint(ctx context.Context, p domain.GeoPoint) (domain.SessionView, error) {
	return o.do(ctx, "add_point", func(ctx context.Context) error {
		if err := o.sess.AddPoint(p); err != nil {
			return err
		}
		metrics.PointsCaptured.WithLabelValues("tap").Inc()
		return nil
	})
}

// AddSensorSample feeds a location sample. Samples outside the GPS sub-mode or below
// the accuracy gate are dropped silently; accepted reports whether a vertex was added.
func (o *SessionOrchestrator) AddSensorSample(ctx context.Context, sample domain.SensorSample) (view domain.SessionView, accepted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.sess.State() != session.Capturing || !o.sess.GPS():
		metrics.SensorSamplesDropped.WithLabelValues("inactive").Inc()
	case o.maxAccuracy > 0 && sample.Accuracy > o.maxAccuracy:
		metrics.SensorSamplesDropped.WithLabelValues("accuracy").Inc()
	case !o.sess.AddSensorSample(sample):
		metrics.SensorSamplesDropped.WithLabelValues("invalid").Inc()
	default:
		accepted = true
		o.touch()
		metrics.PointsCaptured.WithLabelValues("sensor").Inc()
	}

	view = o.viewLocked()
	if accepted {
		o.publish(ctx, view)
	}
	return view, accepted
}

// SetGPS toggles the GPS-capture sub-mode.
func (o *SessionOrchestrator) SetGPS(ctx context.Context, on bool) (domain.SessionView, error) {
	return o.do(ctx, "gps", func(context.Context) error { return o.sess.SetGPS(on) })
}

// Undo removes the last vertex.
func (o *SessionOrchestrator) Undo(ctx context.Context) (domain.SessionView, error) {
	return o.do(ctx, "undo", func(context.Context) error { return o.sess.Undo() })
}

// Clear removes every vertex and keeps capturing.
func (o *SessionOrchestrator) Clear(ctx context.Context) (domain.SessionView, error) {
	return o.do(ctx, "clear", func(context.Context) error { return o.sess.Clear() })
}

// Cancel abandons the active capture or preview. Nothing is persisted.
func (o *SessionOrchestrator) Cancel(ctx context.Context) (domain.SessionView, error) {
	return o.do(ctx, "cancel", func(context.Context) error {
		o.reset()
		return nil
	})
}

// RequestSave freezes the geometry for the metadata form.
func (o *SessionOrchestrator) RequestSave(ctx context.Context) (domain.SessionView, error) {
	return o.do(ctx, "request_save", func(context.Context) error { return o.sess.RequestSave() })
}

// Resume returns from the metadata form to capturing.
func (o *SessionOrchestrator) Resume(ctx context.Context) (domain.SessionView, error) {
	return o.do(ctx, "resume", func(context.Context) error { return o.sess.Resume() })
}

// Save persists the frozen geometry with md. A new capture creates a record; an edit
// replaces the edited record and keeps its creation time. The session only resets
// once the store accepted the write.
func (o *SessionOrchestrator) Save(ctx context.Context, md domain.Metadata) (*SaveResult, domain.SessionView, error) {
	var saved *SaveResult
	view, err := o.do(ctx, "save", func(ctx context.Context) error {
		kind, geometry, err := o.sess.Pending()
		if err != nil {
			return err
		}
		meta, err := md.Normalize()
		if err != nil {
			return err
		}

		rec := &domain.AnnotationRecord{
			Kind:        kind,
			Geometry:    geometry,
			Title:       meta.Title,
			Description: meta.Description,
			Group:       meta.Group,
			PhotoRef:    meta.PhotoRef,
		}

		start := time.Now()
		op := "create"
		if o.editing != nil {
			op = "update"
			rec.ID = o.editing.ID
			rec.CreatedAt = o.editing.CreatedAt
			if err := o.records.Update(ctx, rec.ID, rec); err != nil {
				return fmt.Errorf("update record %s: %w", rec.ID, err)
			}
		} else {
			id, err := o.records.Create(ctx, rec)
			if err != nil {
				return fmt.Errorf("create record: %w", err)
			}
			rec.ID = id
		}
		metrics.SaveDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
		metrics.RecordsSaved.WithLabelValues(string(kind), op).Inc()

		if _, _, err := o.sess.Commit(); err != nil {
			return err
		}
		o.reset()
		if stored, err := o.records.Get(ctx, rec.ID); err == nil && stored != nil {
			rec = stored
		}
		saved = &SaveResult{Record: rec, Created: op == "create"}
		logging.FromContext(ctx).Info("annotation saved",
			"screen", o.screenID, "record_id", rec.ID, "kind", kind, "op", op, "points", len(geometry))
		return nil
	})
	return saved, view, err
}

// Preview shows a saved record read-only with its measurement. It is refused while a
// capture is active.
func (o *SessionOrchestrator) Preview(ctx context.Context, id string) (domain.SessionView, error) {
	return o.do(ctx, "preview", func(ctx context.Context) error {
		if o.mode == ModeCapture {
			return o.refuse("preview", "exit the current capture first")
		}
		rec, err := o.records.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("load record %s: %w", id, err)
		}
		m, p := geospatial.Measure(rec.Kind, rec.Geometry)
		o.preview = rec
		o.previewMeasure, o.previewPerimeter = readout.Annotate(m), readout.Annotate(p)
		o.mode = ModePreview
		return nil
	}, attribute.String(telemetry.AttrRecord, id))
}

// ClosePreview leaves preview mode. It is a no-op in any other mode.
func (o *SessionOrchestrator) ClosePreview(ctx context.Context) (domain.SessionView, error) {
	return o.do(ctx, "close_preview", func(context.Context) error {
		if o.mode == ModePreview {
			o.reset()
		}
		return nil
	})
}

// FitBoundsFor returns the box enclosing points. ok is false for an empty input.
func (o *SessionOrchestrator) FitBoundsFor(points []domain.GeoPoint) (domain.Bounds, bool) {
	return geospatial.BoundingBox(points)
}

// FitActive fits the points currently on screen.
func (o *SessionOrchestrator) FitActive() (domain.Bounds, bool) {
	return FitCamera(o.View().Points)
}

// FitCamera returns the box a map camera should frame for points. A lone point is
// padded so the camera has a non-degenerate box to zoom to.
func FitCamera(points []domain.GeoPoint) (domain.Bounds, bool) {
	if len(points) == 1 {
		return geospatial.RadiusBox(points[0], SingleMarkerPadding), true
	}
	return geospatial.BoundingBox(points)
}

func (o *SessionOrchestrator) do(ctx context.Context, event string, fn func(context.Context) error, attrs ...attribute.KeyValue) (domain.SessionView, error) {
	attrs = append(attrs,
		attribute.String(telemetry.AttrScreen, o.screenID),
		attribute.String(telemetry.AttrEvent, event),
	)
	ctx, span := telemetry.Tracer().Start(ctx, "session."+event, trace.WithAttributes(attrs...))
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.touch()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrRefusedTransition) {
			metrics.RefusedTransitions.WithLabelValues(event).Inc()
			logging.FromContext(ctx).Debug("session command refused", "screen", o.screenID, "error", err)
		}
		return o.viewLocked(), err
	}

	view := o.viewLocked()
	o.publish(ctx, view)
	return view, nil
}

func (o *SessionOrchestrator) publish(ctx context.Context, view domain.SessionView) {
	if o.views == nil {
		return
	}
	if err := o.views.PublishSessionView(ctx, &view); err != nil {
		logging.FromContext(ctx).Warn("publish session view failed", "screen", o.screenID, "error", err)
	}
}

func (o *SessionOrchestrator) viewLocked() domain.SessionView {
	if o.mode == ModePreview && o.preview != nil {
		v := domain.SessionView{
			ScreenID:  o.screenID,
			Mode:      string(ModePreview),
			State:     session.Idle.String(),
			Kind:      o.preview.Kind,
			Points:    domain.ClonePoints(o.preview.Geometry),
			PreviewID: o.preview.ID,
		}
		if o.previewMeasure != nil {
			m := *o.previewMeasure
			v.Measurement = &m
		}
		if o.previewPerimeter != nil {
			p := *o.previewPerimeter
			v.Perimeter = &p
		}
		return v
	}

	v := o.sess.View()
	v.ScreenID = o.screenID
	v.Mode = string(o.mode)
	if o.editing != nil {
		v.EditingID = o.editing.ID
	}
	return v
}

func (o *SessionOrchestrator) enterCapture(editing *domain.AnnotationRecord) {
	o.mode = ModeCapture
	o.editing = editing
	o.preview, o.previewMeasure, o.previewPerimeter = nil, nil, nil
}

func (o *SessionOrchestrator) reset() {
	o.sess = o.newSession()
	o.mode = ModeIdle
	o.editing = nil
	o.preview, o.previewMeasure, o.previewPerimeter = nil, nil, nil
}

func (o *SessionOrchestrator) newSession() *session.Session {
	s := session.New()
	s.MaxAccuracy = o.maxAccuracy
	return s
}

func (o *SessionOrchestrator) refuse(event, reason string) error {
	state := o.sess.State().String()
	if k := o.sess.Kind(); k != "" {
		state += "(" + string(k) + ")"
	}
	return &domain.TransitionError{State: state, Event: event, Reason: reason}
}
