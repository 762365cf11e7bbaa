package polyline

import (
	"errors"
	"math"
	"testing"
)

func TestDecode_ValidPolyline(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []Coordinate
	}{
		{
			name:     "single point",
			encoded:  "_p~iF~ps|U",
			expected: []Coordinate{{Lat: 38.5, Lng: -120.2}},
		},
		{
			name:    "three points - Google example",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []Coordinate{
				{Lat: 38.5, Lng: -120.2},
				{Lat: 40.7, Lng: -120.95},
				{Lat: 43.252, Lng: -126.453},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode(tt.encoded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d coordinates, got %d", len(tt.expected), len(result))
			}
			for i, coord := range result {
				if !coordsEqual(coord, tt.expected[i], 0.00001) {
					t.Errorf("coordinate %d: expected %+v, got %+v", i, tt.expected[i], coord)
				}
			}
		})
	}
}

func TestDecode_EmptyString(t *testing.T) {
	result, err := Decode("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"truncated value", "_p~i"},
		{"latitude without longitude", "_p~iF"},
		{"character below alphabet", "_p~iF ps|U"},
		{"character above alphabet", "_p~iF\x7fps|U"},
		{"overflowing value", "~~~~~~~~~~~?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.encoded)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		coords []Coordinate
	}{
		{
			name:   "single point",
			coords: []Coordinate{{Lat: 38.5, Lng: -120.2}},
		},
		{
			name: "crater rim",
			coords: []Coordinate{
				{Lat: -8.41234, Lng: 116.45678},
				{Lat: -8.41500, Lng: 116.46012},
				{Lat: -8.41899, Lng: 116.45555},
			},
		},
		{
			name: "antimeridian and poles",
			coords: []Coordinate{
				{Lat: 89.99999, Lng: 179.99999},
				{Lat: -89.99999, Lng: -179.99999},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Decode(Encode(tt.coords))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(decoded) != len(tt.coords) {
				t.Fatalf("round-trip: expected %d coordinates, got %d", len(tt.coords), len(decoded))
			}
			for i, coord := range decoded {
				if !coordsEqual(coord, tt.coords[i], 0.000006) {
					t.Errorf("round-trip coordinate %d: expected %+v, got %+v", i, tt.coords[i], coord)
				}
			}
		})
	}
}

func TestEncode_GoogleExample(t *testing.T) {
	got := Encode([]Coordinate{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	})
	if want := "_p~iF~ps|U_ulLnnqC_mqNvxq`@"; got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestEncode_EmptyCoordinates(t *testing.T) {
	if result := Encode(nil); result != "" {
		t.Errorf("expected empty string for nil coordinates, got %q", result)
	}
	if result := EncodeRing(nil); result != "" {
		t.Errorf("expected empty string for nil ring, got %q", result)
	}
}

func TestRing_RoundTrip(t *testing.T) {
	square := []Coordinate{
		{Lat: 10.000, Lng: 20.000},
		{Lat: 10.000, Lng: 20.010},
		{Lat: 10.010, Lng: 20.010},
		{Lat: 10.010, Lng: 20.000},
	}

	encoded := EncodeRing(square)

	closed, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(closed) != len(square)+1 {
		t.Fatalf("expected closing point, got %d coordinates", len(closed))
	}

	ring, err := DecodeRing(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ring) != len(square) {
		t.Fatalf("expected open ring of %d, got %d", len(square), len(ring))
	}
	for i := range ring {
		if !coordsEqual(ring[i], square[i], 0.000001) {
			t.Errorf("ring coordinate %d: expected %+v, got %+v", i, square[i], ring[i])
		}
	}
}

func TestDecodeRing_OpenInput(t *testing.T) {
	open := []Coordinate{{Lat: 1, Lng: 1}, {Lat: 1, Lng: 2}, {Lat: 2, Lng: 2}}

	ring, err := DecodeRing(Encode(open))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ring) != 3 {
		t.Errorf("expected an open ring to be kept as-is, got %d points", len(ring))
	}
}

func coordsEqual(a, b Coordinate, tolerance float64) bool {
	return math.Abs(a.Lat-b.Lat) < tolerance && math.Abs(a.Lng-b.Lng) < tolerance
}
