package session

import "github.com/samirrijal/geomeasure/internal/core/domain"

// VertexBuffer is the ordered capture log of the annotation being drawn.
// It performs no geometric validation.
type VertexBuffer struct {
	points []domain.GeoPoint
}

// NewVertexBuffer returns a buffer seeded with a copy of points.
func NewVertexBuffer(points ...domain.GeoPoint) *VertexBuffer {
	return &VertexBuffer{points: domain.ClonePoints(points)}
}

// Append adds a point at the end.
func (b *VertexBuffer) Append(p domain.GeoPoint) {
	b.points = append(b.points, p)
}

// UndoLast removes the last point. It reports whether a point was removed.
func (b *VertexBuffer) UndoLast() bool {
	if len(b.points) == 0 {
		return false
	}
	b.points = b.points[:len(b.points)-1]
	return true
}

// Clear empties the buffer.
func (b *VertexBuffer) Clear() {
	b.points = nil
}

// Len returns the number of captured points.
func (b *VertexBuffer) Len() int {
	return len(b.points)
}

// Snapshot returns a copy of the captured points, never nil.
func (b *VertexBuffer) Snapshot() []domain.GeoPoint {
	out := make([]domain.GeoPoint, len(b.points))
	copy(out, b.points)
	return out
}
