// Package polyline encodes and decodes zone boundaries in Google's encoded
// polyline format, which map drawing tools export.
// The algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"fmt"
	"math"
)

// precision is the standard 5 decimal places (about 1.1 m at the equator).
const precision = 1e5

// ErrMalformed is returned for input that is not a valid encoded polyline.
var ErrMalformed = errors.New("malformed polyline")

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Decode decodes an encoded polyline. Truncated input, characters outside
// the alphabet and an odd number of values are rejected.
func Decode(encoded string) ([]Coordinate, error) {
	var (
		coords   []Coordinate
		lat, lng int
	)

	for index := 0; index < len(encoded); {
		latDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, fmt.Errorf("%w: latitude at offset %d has no longitude", ErrMalformed, index)
		}
		lngDelta, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += latDelta
		lng += lngDelta
		coords = append(coords, Coordinate{
			Lat: float64(lat) / precision,
			Lng: float64(lng) / precision,
		})
	}

	return coords, nil
}

// DecodeRing decodes a closed boundary. A repeated closing point is dropped
// so the result is an open ring as zones store it.
func DecodeRing(encoded string) ([]Coordinate, error) {
	coords, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	if n := len(coords); n > 1 && coords[0] == coords[n-1] {
		coords = coords[:n-1]
	}
	return coords, nil
}

func decodeValue(encoded string, index int) (value, next int, err error) {
	start := index
	shift := 0
	result := 0

	for {
		if index >= len(encoded) {
			return 0, 0, fmt.Errorf("%w: value at offset %d is truncated", ErrMalformed, start)
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, 0, fmt.Errorf("%w: invalid character %q at offset %d", ErrMalformed, encoded[index], index)
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
		if shift > 30 {
			return 0, 0, fmt.Errorf("%w: value at offset %d overflows", ErrMalformed, start)
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes coordinates, rounding each to 5 decimal places.
func Encode(coords []Coordinate) string {
	buf := make([]byte, 0, len(coords)*8)
	var prevLat, prevLng int

	for _, c := range coords {
		lat := int(math.Round(c.Lat * precision))
		lng := int(math.Round(c.Lng * precision))
		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lng-prevLng)
		prevLat, prevLng = lat, lng
	}

	return string(buf)
}

// EncodeRing encodes an open ring, repeating the first point at the end as
// map tools expect of a closed polygon.
func EncodeRing(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}
	closed := append(append(make([]Coordinate, 0, len(coords)+1), coords...), coords[0])
	return Encode(closed)
}

func encodeValue(buf []byte, value int) []byte {
	v := value << 1
	if value < 0 {
		v = ^v
	}
	for v >= 0x20 {
		buf = append(buf, byte((0x20|(v&0x1f))+63))
		v >>= 5
	}
	return append(buf, byte(v+63))
}
