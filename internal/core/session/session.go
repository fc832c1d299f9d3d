// Package session implements the capture state machine behind on-map measurement.
//
// A Session accumulates vertices for one annotation at a time, recomputing the live
// measurement after every mutation. All transitions are triggered by the caller;
// refused transitions leave the session untouched and return a *domain.TransitionError.
package session

import (
	"fmt"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/pkg/geospatial"
	"github.com/samirrijal/geomeasure/internal/pkg/readout"
)

// State is the capture state.
type State int

const (
	Idle State = iota
	Capturing
	ReadyToSave
)

func (s State) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case ReadyToSave:
		return "ready_to_save"
	default:
		return "idle"
	}
}

// Session is the capture state machine. It is not safe for concurrent use.
type Session struct {
	state    State
	kind     domain.AnnotationKind
	buf      *VertexBuffer
	snapshot []domain.GeoPoint
	gps      bool

	// MaxAccuracy drops sensor samples whose accuracy radius exceeds it. Zero disables the gate.
	MaxAccuracy float64

	measurement *domain.Measurement
	perimeter   *domain.Measurement
}

// New returns an idle session.
func New() *Session {
	return &Session{buf: NewVertexBuffer()}
}

// NewCapturing returns a session already capturing kind with points pre-populated.
// The points are copied; no per-point events are replayed.
func NewCapturing(kind domain.AnnotationKind, points []domain.GeoPoint) (*Session, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	if err := domain.ValidatePoints(points); err != nil {
		return nil, err
	}
	s := &Session{state: Capturing, kind: kind, buf: NewVertexBuffer(points...)}
	s.recompute()
	return s, nil
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Kind returns the kind being captured, or "" when idle.
func (s *Session) Kind() domain.AnnotationKind { return s.kind }

// Len returns the number of captured vertices.
func (s *Session) Len() int { return s.buf.Len() }

// Points returns a copy of the captured vertices.
func (s *Session) Points() []domain.GeoPoint { return s.buf.Snapshot() }

// GPS reports whether sensor samples are accepted.
func (s *Session) GPS() bool { return s.gps }

// Measurement returns the live readout, nil for markers and idle sessions.
func (s *Session) Measurement() *domain.Measurement {
	if s.measurement == nil {
		return nil
	}
	m := *s.measurement
	return &m
}

// Begin starts capturing kind. Only an idle session may begin; the buffer is cleared
// unconditionally so no vertices survive from an earlier capture.
func (s *Session) Begin(kind domain.AnnotationKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	if s.state != Idle {
		reason := "exit the current capture first"
		if kind != s.kind {
			reason = fmt.Sprintf("cannot switch from %s to %s without exiting", s.kind, kind)
		}
		return s.refuse("begin", reason, nil)
	}

	s.buf.Clear()
	s.snapshot = nil
	s.gps = false
	s.kind = kind
	s.state = Capturing
	s.recompute()
	return nil
}

// AddPoint appends a vertex. A marker keeps only its latest pin.
func (s *Session) AddPoint(p domain.GeoPoint) error {
	if s.state != Capturing {
		return s.refuse("add point", "not capturing", nil)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if s.kind == domain.KindMarker {
		s.buf.Clear()
	}
	s.buf.Append(p)
	s.recompute()
	return nil
}

// AddSensorSample treats a sensor reading as an ordinary add point while the GPS
// sub-mode is on. Readings outside that sub-mode, out of range, or below the accuracy
// gate are ignored; accepted reports whether the sample became a vertex.
func (s *Session) AddSensorSample(sample domain.SensorSample) (accepted bool) {
	if s.state != Capturing || !s.gps {
		return false
	}
	if s.MaxAccuracy > 0 && sample.Accuracy > s.MaxAccuracy {
		return false
	}
	return s.AddPoint(sample.Point) == nil
}

// SetGPS toggles the GPS-capture sub-mode.
func (s *Session) SetGPS(on bool) error {
	if s.state != Capturing {
		return s.refuse("gps", "not capturing", nil)
	}
	s.gps = on
	return nil
}

// Undo removes the last vertex. Undo on an empty buffer is a no-op.
func (s *Session) Undo() error {
	if s.state != Capturing {
		return s.refuse("undo", "not capturing", nil)
	}
	if s.buf.UndoLast() {
		s.recompute()
	}
	return nil
}

// Clear removes all vertices but keeps capturing the same kind.
func (s *Session) Clear() error {
	if s.state != Capturing {
		return s.refuse("clear", "not capturing", nil)
	}
	s.buf.Clear()
	s.recompute()
	return nil
}

// Cancel abandons the capture and returns to idle. Nothing is persisted.
func (s *Session) Cancel() {
	s.buf.Clear()
	s.snapshot = nil
	s.gps = false
	s.kind = ""
	s.state = Idle
	s.recompute()
}

// RequestSave freezes the geometry when the kind's minimum vertex count is met.
func (s *Session) RequestSave() error {
	if s.state != Capturing {
		return s.refuse("request save", "not capturing", nil)
	}
	if n, need := s.buf.Len(), s.kind.MinVertices(); n < need {
		return s.refuse("request save",
			fmt.Sprintf("%s needs at least %d points, has %d", s.kind, need, n),
			domain.ErrInsufficientVertices)
	}

	s.snapshot = s.buf.Snapshot()
	s.gps = false
	s.state = ReadyToSave
	return nil
}

// Resume returns from ReadyToSave to Capturing with the same vertices.
func (s *Session) Resume() error {
	if s.state != ReadyToSave {
		return s.refuse("resume", "no save pending", nil)
	}
	s.snapshot = nil
	s.state = Capturing
	return nil
}

// Pending returns the frozen geometry awaiting commit.
func (s *Session) Pending() (domain.AnnotationKind, []domain.GeoPoint, error) {
	if s.state != ReadyToSave {
		return "", nil, s.refuse("save", "request save first", nil)
	}
	return s.kind, domain.ClonePoints(s.snapshot), nil
}

// Commit hands out the frozen geometry and resets to idle.
func (s *Session) Commit() (domain.AnnotationKind, []domain.GeoPoint, error) {
	kind, geometry, err := s.Pending()
	if err != nil {
		return "", nil, err
	}
	s.Cancel()
	return kind, geometry, nil
}

// View returns the read-only projection of the session.
func (s *Session) View() domain.SessionView {
	v := domain.SessionView{
		State:  s.state.String(),
		Kind:   s.kind,
		Points: s.buf.Snapshot(),
		GPS:    s.gps,
	}
	if s.measurement != nil {
		m := *s.measurement
		v.Measurement = &m
	}
	if s.perimeter != nil {
		p := *s.perimeter
		v.Perimeter = &p
	}
	return v
}

func (s *Session) recompute() {
	if s.state == Idle {
		s.measurement, s.perimeter = nil, nil
		return
	}
	m, p := geospatial.Measure(s.kind, s.buf.points)
	s.measurement, s.perimeter = readout.Annotate(m), readout.Annotate(p)
}

func (s *Session) refuse(event, reason string, cause error) error {
	state := s.state.String()
	if s.kind != "" {
		state += "(" + string(s.kind) + ")"
	}
	return &domain.TransitionError{State: state, Event: event, Reason: reason, Err: cause}
}
