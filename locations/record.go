// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

// Package locations defines the location record flowing through the geomemo
// pipeline and the pure stages applied to it.
package locations

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/JulianYG/GeoMemo/spatial"
)

// UnknownRegion is the region label used when the source has none.
const UnknownRegion = "Unknown"

// ErrInvalidParameter is returned, wrapped, for malformed thresholds and
// limits. It is raised before any processing starts.
var ErrInvalidParameter = errors.New("invalid parameter")

// Record is a single geotagged media item. Records are passed by value and
// each stage returns a new slice.
type Record struct {
	spatial.Point

	// CapturedAt is nil when the media item has no date metadata.
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Region     string     `json:"region"`

	// SourceID points back to the media item, for diagnostics only.
	SourceID string `json:"source_id"`

	IsVideo     bool   `json:"is_video"`
	IsFavorite  bool   `json:"is_favorite"`
	Description string `json:"description,omitempty"`
}

// Validate checks the coordinates of the record.
func (r Record) Validate() error {
	if math.IsNaN(r.Lat) || math.IsNaN(r.Lng) {
		return fmt.Errorf("record %s: coordinates are not numbers", r.SourceID)
	}

	if r.Lat < -90 || r.Lat > 90 {
		return fmt.Errorf("record %s: latitude must be between -90 and 90 (got %f)", r.SourceID, r.Lat)
	}

	if r.Lng < -180 || r.Lng > 180 {
		return fmt.Errorf("record %s: longitude must be between -180 and 180 (got %f)", r.SourceID, r.Lng)
	}

	if r.IsNull() {
		return fmt.Errorf("record %s: (0, 0) is not a real location", r.SourceID)
	}

	return nil
}

// WithPoint returns a copy of the record relocated to p.
func (r Record) WithPoint(p spatial.Point) Record {
	r.Point = p

	return r
}

// FilterValid returns the records with usable coordinates and the number of
// records removed.
func FilterValid(records []Record) ([]Record, int) {
	valid := make([]Record, 0, len(records))

	for _, r := range records {
		if r.Validate() == nil {
			valid = append(valid, r)
		}
	}

	return valid, len(records) - len(valid)
}

// RequirePositive fails with ErrInvalidParameter unless v is a finite number
// greater than zero.
func RequirePositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s must be a positive number of meters (got %v)", ErrInvalidParameter, name, v)
	}

	return nil
}
