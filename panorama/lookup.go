// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

// Package panorama checks locations against Street View coverage and moves
// them onto the nearest panorama, the only place GeoGuessr can drop a player.
package panorama

import (
	"context"

	"github.com/JulianYG/GeoMemo/spatial"
)

// Panorama is a street level imagery point returned by the coverage service.
type Panorama struct {
	ID        string
	Point     spatial.Point
	Date      string
	Copyright string
}

// Lookuper finds the panorama nearest to a point within radius meters.
// It returns (nil, nil) when the service reports no coverage.
type Lookuper interface {
	Lookup(ctx context.Context, p spatial.Point, radius float64) (*Panorama, error)
}

// LookupFunc adapts a function to the Lookuper interface.
type LookupFunc func(ctx context.Context, p spatial.Point, radius float64) (*Panorama, error)

// Lookup implements Lookuper.
func (f LookupFunc) Lookup(ctx context.Context, p spatial.Point, radius float64) (*Panorama, error) {
	return f(ctx, p, radius)
}
