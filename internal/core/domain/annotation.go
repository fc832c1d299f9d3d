package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// AnnotationKind is the geometry type of an annotation.
type AnnotationKind string

const (
	// KindMarker is a single pin.
	KindMarker AnnotationKind = "marker"
	// KindDistance is an open polyline.
	KindDistance AnnotationKind = "distance"
	// KindField is a closed polygon; the closing edge is implicit.
	KindField AnnotationKind = "field"
)

// ParseAnnotationKind parses a kind name, case-insensitively.
func ParseAnnotationKind(s string) (AnnotationKind, error) {
	switch k := AnnotationKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMarker, KindDistance, KindField:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// MinVertices is the number of points a saved annotation of this kind needs.
func (k AnnotationKind) MinVertices() int {
	switch k {
	case KindDistance:
		return 2
	case KindField:
		return 3
	default:
		return 1
	}
}

// MaxVertices is the most points an annotation of this kind may hold. 0 means no limit.
func (k AnnotationKind) MaxVertices() int {
	if k == KindMarker {
		return 1
	}
	return 0
}

// Valid reports whether k is a known kind.
func (k AnnotationKind) Valid() bool {
	_, err := ParseAnnotationKind(string(k))
	return err == nil
}

// DefaultGroupName is the sentinel group every record falls back to.
const DefaultGroupName = "Without group"

// DefaultGroupColor is the color tag of the sentinel group.
const DefaultGroupColor = "#9E9E9E"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidColor reports whether c is a #RRGGBB color tag.
func ValidColor(c string) bool {
	return colorPattern.MatchString(c)
}

// Group classifies records.
type Group struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DefaultGroup returns the sentinel group.
func DefaultGroup() Group {
	return Group{Name: DefaultGroupName, Color: DefaultGroupColor}
}

// IsDefault reports whether g is the sentinel group.
func (g Group) IsDefault() bool {
	return g.Name == DefaultGroupName
}

// AnnotationRecord is a persisted annotation.
type AnnotationRecord struct {
	ID          string         `json:"id"`
	Kind        AnnotationKind `json:"kind"`
	Geometry    []GeoPoint     `json:"geometry"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Group       Group          `json:"group"`
	PhotoRef    *string        `json:"photo_ref,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of r.
func (r *AnnotationRecord) Clone() *AnnotationRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Geometry = ClonePoints(r.Geometry)
	if r.PhotoRef != nil {
		ref := *r.PhotoRef
		c.PhotoRef = &ref
	}
	return &c
}

// Metadata is the form data attached to geometry at save time.
type Metadata struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Group       Group   `json:"group"`
	PhotoRef    *string `json:"photo_ref,omitempty"`
}

// Normalize trims the form fields and applies the default group. An empty group
// color is left for the group catalogue to fill in.
func (m Metadata) Normalize() (Metadata, error) {
	m.Title = strings.TrimSpace(m.Title)
	m.Description = strings.TrimSpace(m.Description)
	m.Group.Name = strings.TrimSpace(m.Group.Name)
	m.Group.Color = strings.TrimSpace(m.Group.Color)
	if m.Title == "" {
		return m, &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if m.Group.Name == "" || m.Group.IsDefault() {
		m.Group = DefaultGroup()
	}
	if m.Group.Color != "" && !ValidColor(m.Group.Color) {
		return m, &ValidationError{Field: "group.color", Message: "must be #RRGGBB"}
	}
	if m.PhotoRef != nil && strings.TrimSpace(*m.PhotoRef) == "" {
		m.PhotoRef = nil
	}
	return m, nil
}

// MeasurementKind is the quantity a measurement expresses.
type MeasurementKind string

const (
	MeasureDistance MeasurementKind = "distance"
	MeasureArea     MeasurementKind = "area"
)

// Units used by Measurement.
const (
	UnitMeters       = "m"
	UnitSquareMeters = "m2"
)

// Measurement is a derived, never persisted readout.
type Measurement struct {
	Kind      MeasurementKind `json:"kind"`
	Magnitude float64         `json:"magnitude"`
	Unit      string          `json:"unit"`
	Display   string          `json:"display,omitempty"`
}

// SessionView is the read-only projection a map surface renders after every mutation.
type SessionView struct {
	ScreenID    string         `json:"screen_id,omitempty"`
	Mode        string         `json:"mode"`
	State       string         `json:"state"`
	Kind        AnnotationKind `json:"kind,omitempty"`
	Points      []GeoPoint     `json:"points"`
	Measurement *Measurement   `json:"measurement,omitempty"`
	Perimeter   *Measurement   `json:"perimeter,omitempty"`
	GPS         bool           `json:"gps"`
	EditingID   string         `json:"editing_id,omitempty"`
	PreviewID   string         `json:"preview_id,omitempty"`
}

// RecordEventType names a record lifecycle event.
type RecordEventType string

const (
	RecordCreated RecordEventType = "created"
	RecordUpdated RecordEventType = "updated"
	RecordDeleted RecordEventType = "deleted"
)

// RecordEvent is published whenever the record collection changes.
type RecordEvent struct {
	Type     RecordEventType   `json:"type"`
	RecordID string            `json:"record_id"`
	Record   *AnnotationRecord `json:"record,omitempty"`
	Time     time.Time         `json:"time"`
}
