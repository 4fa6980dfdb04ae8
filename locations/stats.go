// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package locations

import (
	"time"
)

// Stats summarizes a set of records.
type Stats struct {
	Total           int
	Photos          int
	Videos          int
	Favorites       int
	WithDescription int
	// NullCoordinates counts records dropped for invalid coordinates.
	NullCoordinates int
	// Earliest and Latest are nil when no record has a capture date.
	Earliest *time.Time
	Latest   *time.Time
}

// ComputeStats returns statistics about the records with valid coordinates.
func ComputeStats(records []Record) Stats {
	valid, invalid := FilterValid(records)

	stats := Stats{
		Total:           len(valid),
		NullCoordinates: invalid,
	}

	for _, r := range valid {
		if r.IsVideo {
			stats.Videos++
		} else {
			stats.Photos++
		}

		if r.IsFavorite {
			stats.Favorites++
		}

		if r.Description != "" {
			stats.WithDescription++
		}

		if r.CapturedAt == nil {
			continue
		}

		if stats.Earliest == nil || r.CapturedAt.Before(*stats.Earliest) {
			t := *r.CapturedAt
			stats.Earliest = &t
		}

		if stats.Latest == nil || r.CapturedAt.After(*stats.Latest) {
			t := *r.CapturedAt
			stats.Latest = &t
		}
	}

	return stats
}
