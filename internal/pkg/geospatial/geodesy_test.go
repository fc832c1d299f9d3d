package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/pkg/geospatial"
)

func reversed(points []domain.GeoPoint) []domain.GeoPoint {
	out := make([]domain.GeoPoint, len(points))
	for i, p := range points {
		out[len(points)-1-i] = p
	}
	return out
}

// sphericalTriangleArea uses L'Huilier's theorem on the haversine side lengths.
func sphericalTriangleArea(a, b, c domain.GeoPoint) float64 {
	r := geospatial.EarthRadiusMeters
	sa := geospatial.Haversine(b.Lat, b.Lng, c.Lat, c.Lng) / r
	sb := geospatial.Haversine(a.Lat, a.Lng, c.Lat, c.Lng) / r
	sc := geospatial.Haversine(a.Lat, a.Lng, b.Lat, b.Lng) / r
	s := (sa + sb + sc) / 2
	e := 4 * math.Atan(math.Sqrt(math.Tan(s/2)*math.Tan((s-sa)/2)*math.Tan((s-sb)/2)*math.Tan((s-sc)/2)))
	return e * r * r
}

func TestDistance_Degenerate(t *testing.T) {
	if d := geospatial.Distance(nil); d != 0 {
		t.Errorf("expected 0 for empty sequence, got %f", d)
	}
	if d := geospatial.Distance([]domain.GeoPoint{{Lat: 43.26, Lng: -2.93}}); d != 0 {
		t.Errorf("expected 0 for single point, got %f", d)
	}
}

func TestDistance_ChennaiBangalore(t *testing.T) {
	points := []domain.GeoPoint{
		{Lat: 13.0827, Lng: 80.2707},
		{Lat: 12.9716, Lng: 77.5946},
	}

	d := geospatial.Distance(points)
	if d < 290000 || d > 295000 {
		t.Fatalf("expected 290-295 km, got %.1f m", d)
	}
}

func TestDistance_ReversalSymmetry(t *testing.T) {
	cases := [][]domain.GeoPoint{
		{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}},
		{{Lat: 43.263, Lng: -2.935}, {Lat: 43.264, Lng: -2.934}, {Lat: 43.27, Lng: -2.92}},
		{{Lat: -33.86, Lng: 151.2}, {Lat: 51.5, Lng: -0.12}, {Lat: 40.7, Lng: -74.0}, {Lat: 35.6, Lng: 139.7}},
	}

	for _, points := range cases {
		fwd := geospatial.Distance(points)
		back := geospatial.Distance(reversed(points))
		if math.Abs(fwd-back) > 1e-6 {
			t.Errorf("distance not symmetric: %f vs %f", fwd, back)
		}
	}
}

func TestArea_Triangle(t *testing.T) {
	tri := []domain.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 0}}

	got := geospatial.Area(tri)
	want := sphericalTriangleArea(tri[0], tri[1], tri[2])
	if got <= 0 {
		t.Fatalf("expected positive area, got %f", got)
	}
	if rel := math.Abs(got-want) / want; rel > 1e-3 {
		t.Errorf("area %f deviates from spherical excess %f by %.5f", got, want, rel)
	}
	if rev := geospatial.Area(reversed(tri)); math.Abs(rev-got) > 1e-6 {
		t.Errorf("reversed winding changed area: %f vs %f", rev, got)
	}
}

func TestArea_WindingInvariant(t *testing.T) {
	square := []domain.GeoPoint{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}, {Lat: 0.001, Lng: 0.001}, {Lat: 0.001, Lng: 0},
	}
	cw := geospatial.Area(square)
	ccw := geospatial.Area(reversed(square))
	if math.Abs(cw-ccw) > 1e-6 {
		t.Errorf("winding changed area: %f vs %f", cw, ccw)
	}
	// ~111.2 m per side at the equator.
	if cw < 12300 || cw > 12400 {
		t.Errorf("expected ~12364 m², got %f", cw)
	}
}

func TestArea_Degenerate(t *testing.T) {
	if a := geospatial.Area([]domain.GeoPoint{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}); a != 0 {
		t.Errorf("expected 0 for two points, got %f", a)
	}
}

func TestPerimeter(t *testing.T) {
	tri := []domain.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 0}}
	open := geospatial.Distance(tri)
	closed := geospatial.Perimeter(tri)
	closing := geospatial.Haversine(1, 0, 0, 0)
	if math.Abs(closed-(open+closing)) > 1e-6 {
		t.Errorf("perimeter %f != open %f + closing %f", closed, open, closing)
	}
	if p := geospatial.Perimeter(tri[:2]); p != 0 {
		t.Errorf("expected 0 perimeter for two points, got %f", p)
	}
}

func TestBoundingBox(t *testing.T) {
	b, ok := geospatial.BoundingBox([]domain.GeoPoint{
		{Lat: 43.26, Lng: -2.93}, {Lat: 43.30, Lng: -2.99}, {Lat: 43.21, Lng: -2.90},
	})
	if !ok {
		t.Fatal("expected ok")
	}
	want := domain.Bounds{MinLat: 43.21, MinLng: -2.99, MaxLat: 43.30, MaxLng: -2.90}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}
}

func TestBoundingBox_Empty(t *testing.T) {
	b, ok := geospatial.BoundingBox(nil)
	if ok {
		t.Fatal("expected ok=false for empty sequence")
	}
	if b != (domain.Bounds{}) {
		t.Errorf("expected zero bounds, got %+v", b)
	}
}

func TestMeasure(t *testing.T) {
	line := []domain.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 0}}

	if m, p := geospatial.Measure(domain.KindMarker, line[:1]); m != nil || p != nil {
		t.Error("marker should have no readout")
	}

	m, p := geospatial.Measure(domain.KindDistance, line)
	if m == nil || m.Kind != domain.MeasureDistance || m.Unit != domain.UnitMeters || p != nil {
		t.Fatalf("unexpected distance readout %+v %+v", m, p)
	}

	m, p = geospatial.Measure(domain.KindField, line)
	if m == nil || m.Kind != domain.MeasureArea || m.Unit != domain.UnitSquareMeters {
		t.Fatalf("unexpected area readout %+v", m)
	}
	if p == nil || p.Magnitude <= 0 {
		t.Fatalf("expected perimeter readout, got %+v", p)
	}
}

func TestRadiusBox(t *testing.T) {
	b := geospatial.RadiusBox(domain.GeoPoint{Lat: 0, Lng: 0}, 1113.2)
	if math.Abs(b.MaxLat-0.01) > 1e-9 || math.Abs(b.MinLng+0.01) > 1e-9 {
		t.Errorf("unexpected box %+v", b)
	}
}
