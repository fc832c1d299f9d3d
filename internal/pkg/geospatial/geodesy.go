// Package geospatial holds the spherical-earth geometry used for live readouts.
package geospatial

import (
	"math"

	"github.com/samirrijal/geomeasure/internal/core/domain"
)

// EarthRadiusMeters is the mean radius of the spherical earth model.
const EarthRadiusMeters = 6371000.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Distance sums the great-circle distance between consecutive points.
// Fewer than two points yield 0.
func Distance(points []domain.GeoPoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		total += Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
	}
	return total
}

// Perimeter is Distance of the implicitly closed ring. Fewer than three points yield 0.
func Perimeter(points []domain.GeoPoint) float64 {
	if len(points) < 3 {
		return 0
	}
	first, last := points[0], points[len(points)-1]
	return Distance(points) + Haversine(last.Lat, last.Lng, first.Lat, first.Lng)
}

// Area returns the spherical polygon area in square meters of the ring described by points.
// The ring is closed implicitly and the result does not depend on winding order.
// Fewer than three points yield 0.
func Area(points []domain.GeoPoint) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		p1 := points[i]
		p2 := points[(i+1)%n]
		sum += toRad(p2.Lng-p1.Lng) *
			(2 + math.Sin(toRad(p1.Lat)) + math.Sin(toRad(p2.Lat)))
	}

	return math.Abs(sum * EarthRadiusMeters * EarthRadiusMeters / 2)
}

// BoundingBox returns the box enclosing points. ok is false, and the box zero,
// for an empty sequence.
func BoundingBox(points []domain.GeoPoint) (b domain.Bounds, ok bool) {
	if len(points) == 0 {
		return domain.Bounds{}, false
	}

	b = domain.Bounds{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLng: points[0].Lng, MaxLng: points[0].Lng,
	}
	for _, p := range points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	return b, true
}

// RadiusBox returns a bounding box around a point with the given radius in meters.
func RadiusBox(p domain.GeoPoint, radiusMeters float64) domain.Bounds {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(p.Lat)))

	return domain.Bounds{
		MinLat: p.Lat - latDelta, MinLng: p.Lng - lonDelta,
		MaxLat: p.Lat + latDelta, MaxLng: p.Lng + lonDelta,
	}
}

// Measure computes the live readout for a kind. Markers have no numeric readout.
func Measure(kind domain.AnnotationKind, points []domain.GeoPoint) (m *domain.Measurement, perimeter *domain.Measurement) {
	switch kind {
	case domain.KindDistance:
		return &domain.Measurement{Kind: domain.MeasureDistance, Magnitude: Distance(points), Unit: domain.UnitMeters}, nil
	case domain.KindField:
		return &domain.Measurement{Kind: domain.MeasureArea, Magnitude: Area(points), Unit: domain.UnitSquareMeters},
			&domain.Measurement{Kind: domain.MeasureDistance, Magnitude: Perimeter(points), Unit: domain.UnitMeters}
	default:
		return nil, nil
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
