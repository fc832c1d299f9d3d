package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// NewGeoPoint returns a validated point.
func NewGeoPoint(lat, lng float64) (GeoPoint, error) {
	p := GeoPoint{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// Validate checks the latitude and longitude ranges.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidCoordinate, p.Lat)
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// ValidatePoints validates every point of a sequence.
func ValidatePoints(points []GeoPoint) error {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

// ClonePoints returns a copy of points that shares no backing array with the input.
func ClonePoints(points []GeoPoint) []GeoPoint {
	if points == nil {
		return nil
	}
	out := make([]GeoPoint, len(points))
	copy(out, points)
	return out
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MinLng float64 `json:"min_lng" yaml:"min_lng"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MaxLng float64 `json:"max_lng" yaml:"max_lng"`
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return GeoPoint{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLng + b.MaxLng) / 2}
}

// SensorSample is one reading from a location sensor feed.
type SensorSample struct {
	ScreenID  string   `json:"screen_id"`
	Point     GeoPoint `json:"point"`
	Accuracy  float64  `json:"accuracy"`  // meters, 0 when unknown
	Timestamp int64    `json:"timestamp"` // unix milliseconds
}

// SensorPayload is the JSON wire form of a SensorSample on the sensor feeds.
type SensorPayload struct {
	ScreenID  string  `json:"screen_id" yaml:"screen_id"`
	Lat       float64 `json:"lat" yaml:"lat"`
	Lng       float64 `json:"lng" yaml:"lng"`
	Accuracy  float64 `json:"accuracy,omitempty" yaml:"accuracy"`
	Timestamp int64   `json:"timestamp" yaml:"timestamp"`
}

// Sample converts the payload to a SensorSample.
func (p SensorPayload) Sample() SensorSample {
	return SensorSample{
		ScreenID:  p.ScreenID,
		Point:     GeoPoint{Lat: p.Lat, Lng: p.Lng},
		Accuracy:  p.Accuracy,
		Timestamp: p.Timestamp,
	}
}

// NewSensorPayload converts a SensorSample to its wire form.
func NewSensorPayload(s SensorSample) SensorPayload {
	return SensorPayload{
		ScreenID:  s.ScreenID,
		Lat:       s.Point.Lat,
		Lng:       s.Point.Lng,
		Accuracy:  s.Accuracy,
		Timestamp: s.Timestamp,
	}
}
