// Package geo provides the geometry used to classify a location against a zone
// boundary: ring normalization, even-odd containment and great-circle distance
// from a point to the boundary.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// Boundary validation errors.
var (
	ErrTooFewVertices   = errors.New("boundary needs at least 3 distinct vertices")
	ErrZeroArea         = errors.New("boundary encloses zero area")
	ErrSelfIntersecting = errors.New("boundary is self-intersecting")
	ErrInvalidVertex    = errors.New("boundary vertex out of range")
)

// areaEpsilon is the smallest absolute shoelace area (in squared degrees)
// accepted as a real polygon.
const areaEpsilon = 1e-12

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ConfigurationError reports a zone boundary that cannot be evaluated.
type ConfigurationError struct {
	ZoneID string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.ZoneID == "" {
		return fmt.Sprintf("invalid boundary: %v", e.Err)
	}
	return fmt.Sprintf("zone %s: invalid boundary: %v", e.ZoneID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Polygon is a normalized, closed boundary ring ready for evaluation.
// A Polygon is immutable once built.
type Polygon struct {
	ring []Point // closed: ring[0] == ring[len(ring)-1]

	minLat, maxLat float64
	minLng, maxLng float64
}

// NewPolygon normalizes vertices into a closed ring and validates it.
// Consecutive duplicate vertices are collapsed and the ring is closed by
// appending the first vertex when the last one differs.
func NewPolygon(vertices []Point) (*Polygon, error) {
	ring, err := normalizeRing(vertices)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	p := &Polygon{
		ring:   ring,
		minLat: math.Inf(1),
		maxLat: math.Inf(-1),
		minLng: math.Inf(1),
		maxLng: math.Inf(-1),
	}
	for _, v := range ring {
		p.minLat = math.Min(p.minLat, v.Lat)
		p.maxLat = math.Max(p.maxLat, v.Lat)
		p.minLng = math.Min(p.minLng, v.Lng)
		p.maxLng = math.Max(p.maxLng, v.Lng)
	}

	return p, nil
}

// Ring returns a copy of the closed ring.
func (p *Polygon) Ring() []Point {
	out := make([]Point, len(p.ring))
	copy(out, p.ring)
	return out
}

// Contains reports whether pt lies inside the polygon using the even-odd rule.
// Points on the boundary get a deterministic, but unspecified, answer.
func (p *Polygon) Contains(pt Point) bool {
	if pt.Lat < p.minLat || pt.Lat > p.maxLat || pt.Lng < p.minLng || pt.Lng > p.maxLng {
		return false
	}

	inside := false
	for i := 0; i < len(p.ring)-1; i++ {
		a, b := p.ring[i], p.ring[i+1]
		if (a.Lat > pt.Lat) == (b.Lat > pt.Lat) {
			continue
		}
		crossLng := (b.Lng-a.Lng)*(pt.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lng
		if pt.Lng < crossLng {
			inside = !inside
		}
	}
	return inside
}

// Contains is a convenience wrapper that normalizes boundary on every call.
func Contains(pt Point, boundary []Point) (bool, error) {
	p, err := NewPolygon(boundary)
	if err != nil {
		return false, err
	}
	return p.Contains(pt), nil
}

func normalizeRing(vertices []Point) ([]Point, error) {
	ring := make([]Point, 0, len(vertices)+1)
	for _, v := range vertices {
		if !validVertex(v) {
			return nil, fmt.Errorf("%w: (%v, %v)", ErrInvalidVertex, v.Lat, v.Lng)
		}
		if len(ring) > 0 && ring[len(ring)-1] == v {
			continue
		}
		ring = append(ring, v)
	}

	// Count distinct vertices of the open ring.
	open := ring
	if len(open) > 1 && open[0] == open[len(open)-1] {
		open = open[:len(open)-1]
	}
	distinct := make(map[Point]struct{}, len(open))
	for _, v := range open {
		distinct[v] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, ErrTooFewVertices
	}

	closed := make([]Point, len(open), len(open)+1)
	copy(closed, open)
	closed = append(closed, open[0])

	if selfIntersects(closed) {
		return nil, ErrSelfIntersecting
	}
	if math.Abs(signedArea(closed)) < areaEpsilon {
		return nil, ErrZeroArea
	}

	return closed, nil
}

func validVertex(v Point) bool {
	if math.IsNaN(v.Lat) || math.IsNaN(v.Lng) || math.IsInf(v.Lat, 0) || math.IsInf(v.Lng, 0) {
		return false
	}
	return v.Lat >= -90 && v.Lat <= 90 && v.Lng >= -180 && v.Lng <= 180
}

// signedArea is the planar shoelace area of a closed ring in squared degrees.
func signedArea(ring []Point) float64 {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i].Lng*ring[i+1].Lat - ring[i+1].Lng*ring[i].Lat
	}
	return sum / 2
}

// selfIntersects checks every pair of non-adjacent edges of a closed ring.
func selfIntersects(ring []Point) bool {
	n := len(ring) - 1 // number of edges
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func orientation(a, b, c Point) float64 {
	return (b.Lng-a.Lng)*(c.Lat-a.Lat) - (b.Lat-a.Lat)*(c.Lng-a.Lng)
}

func onSegment(a, b, c Point) bool {
	return math.Min(a.Lng, b.Lng) <= c.Lng && c.Lng <= math.Max(a.Lng, b.Lng) &&
		math.Min(a.Lat, b.Lat) <= c.Lat && c.Lat <= math.Max(a.Lat, b.Lat)
}

func segmentsIntersect(p1, p2, q1, q2 Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}
