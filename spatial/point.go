// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the small amount of geometry geomemo needs: points on
// the WGS84 sphere, great-circle distances and a cell index to speed up
// proximity queries.
package spatial

import (
	"fmt"
	"math"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371e3

// Point represents a geographical point with latitude and longitude in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("(%f, %f)", p.Lat, p.Lng)
}

// InRange reports whether both coordinates fall within their valid ranges.
func (p Point) InRange() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// IsNull reports whether the point is the (0, 0) placeholder cameras write
// when they have no fix.
func (p Point) IsNull() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Valid reports whether the point is usable: in range and not (0, 0).
func (p Point) Valid() bool {
	return p.InRange() && !p.IsNull()
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p Point) HaversineDistance(other Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}
