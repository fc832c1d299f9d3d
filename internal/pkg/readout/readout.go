// Package readout renders coordinates and measurements as display strings.
package readout

import (
	"fmt"
	"math"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// Placeholder is rendered for a missing coordinate.
const Placeholder = "--"

// acresPerSquareMeter converts square meters to acres.
const acresPerSquareMeter = 0.000247105

// Axis selects the hemisphere suffix of a coordinate.
type Axis int

const (
	Latitude Axis = iota
	Longitude
)

// FormatCoordinate renders |value| with six decimals and a hemisphere suffix.
func FormatCoordinate(value *float64, axis Axis) string {
	if value == nil || math.IsNaN(*value) {
		return Placeholder
	}

	v := *value
	var dir string
	switch axis {
	case Latitude:
		dir = "N"
		if v < 0 {
			dir = "S"
		}
	default:
		dir = "E"
		if v < 0 {
			dir = "W"
		}
	}
	return fmt.Sprintf("%.6f° %s", math.Abs(v), dir)
}

// FormatPoint renders "lat, lng" with hemisphere suffixes.
func FormatPoint(p domain.GeoPoint) string {
	return FormatCoordinate(&p.Lat, Latitude) + ", " + FormatCoordinate(&p.Lng, Longitude)
}

// FormatDistance renders meters below 1 km, kilometers above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.2f m", meters)
	}
	return fmt.Sprintf("%.2f km", meters/1000)
}

// FormatArea renders acres, falling back to square meters for plots under one acre.
func FormatArea(sqMeters float64) string {
	acres := sqMeters * acresPerSquareMeter
	if acres < 1 {
		return fmt.Sprintf("%.2f m²", sqMeters)
	}
	return fmt.Sprintf("%.2f acres", acres)
}

// FormatMeasurement renders a measurement according to its kind.
func FormatMeasurement(m domain.Measurement) string {
	if m.Kind == domain.MeasureArea {
		return FormatArea(m.Magnitude)
	}
	return FormatDistance(m.Magnitude)
}

// Annotate fills the Display field of m in place and returns it.
func Annotate(m *domain.Measurement) *domain.Measurement {
	if m != nil {
		m.Display = FormatMeasurement(*m)
	}
	return m
}
