package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used to convert angles to meters.
const EarthRadiusMeters = 6371008.8

// DistanceToBoundary returns the great-circle distance in meters from pt to
// the closest edge of the polygon ring.
func (p *Polygon) DistanceToBoundary(pt Point) float64 {
	x := toS2(pt)

	best := math.Inf(1)
	for i := 0; i < len(p.ring)-1; i++ {
		a, b := toS2(p.ring[i]), toS2(p.ring[i+1])
		d := s2.DistanceFromSegment(x, a, b).Radians() * EarthRadiusMeters
		if d < best {
			best = d
		}
	}
	return best
}

// DistanceToBoundary normalizes boundary and measures the distance from pt to it.
func DistanceToBoundary(pt Point, boundary []Point) (float64, error) {
	p, err := NewPolygon(boundary)
	if err != nil {
		return 0, err
	}
	return p.DistanceToBoundary(pt), nil
}

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b Point) float64 {
	return toS2(a).Distance(toS2(b)).Radians() * EarthRadiusMeters
}

func toS2(pt Point) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(pt.Lat, pt.Lng))
}
