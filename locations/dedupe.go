// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package locations

import (
	"github.com/JulianYG/GeoMemo/spatial"
)

// Deduplicate collapses records closer than distanceMeters into the first one
// seen. It is a greedy single pass in input order: a record strictly closer
// than distanceMeters to an already kept record is discarded, otherwise it is
// kept. Kept records are never moved, so the result depends on input order.
func Deduplicate(records []Record, distanceMeters float64) ([]Record, error) {
	if err := RequirePositive("dedupe distance", distanceMeters); err != nil {
		return nil, err
	}

	return deduplicate(records, spatial.NewIndex(distanceMeters)), nil
}

// representatives is what deduplicate needs from spatial.Index.
type representatives interface {
	Insert(p spatial.Point) int
	Nearest(p spatial.Point) (int, float64, bool)
}

func deduplicate(records []Record, reps representatives) []Record {
	kept := make([]Record, 0, len(records))

	for _, r := range records {
		if _, _, dup := reps.Nearest(r.Point); dup {
			continue
		}

		reps.Insert(r.Point)
		kept = append(kept, r)
	}

	return kept
}
