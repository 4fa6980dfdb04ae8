// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"context"
	"fmt"
	"time"

	"github.com/JulianYG/GeoMemo/locations"
	"github.com/JulianYG/GeoMemo/utils/textutils"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days. Either end may be open.
type DateRange struct {
	start *time.Time
	// end is the first instant after the last included day.
	end *time.Time
}

// ParseDateRange parses YYYY-MM-DD bounds, empty strings leave that side
// open.
func ParseDateRange(startFrom, endOn string) (DateRange, error) {
	var r DateRange

	if startFrom != "" {
		t, err := time.Parse(dateLayout, startFrom)
		if err != nil {
			return r, fmt.Errorf("%w: invalid start date %q, expected YYYY-MM-DD", locations.ErrInvalidParameter, startFrom)
		}

		r.start = &t
	}

	if endOn != "" {
		t, err := time.Parse(dateLayout, endOn)
		if err != nil {
			return r, fmt.Errorf("%w: invalid end date %q, expected YYYY-MM-DD", locations.ErrInvalidParameter, endOn)
		}

		t = t.AddDate(0, 0, 1)
		r.end = &t
	}

	if r.start != nil && r.end != nil && !r.start.Before(*r.end) {
		return r, fmt.Errorf("%w: start date %s is after end date %s", locations.ErrInvalidParameter, startFrom, endOn)
	}

	return r, nil
}

// IsZero reports whether the range is open on both sides.
func (r DateRange) IsZero() bool {
	return r.start == nil && r.end == nil
}

// Contains reports whether t falls in the range. Capture times are compared
// by their wall clock, whatever zone they were recorded in.
func (r DateRange) Contains(t time.Time) bool {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)

	if r.start != nil && wall.Before(*r.start) {
		return false
	}

	if r.end != nil && !wall.Before(*r.end) {
		return false
	}

	return true
}

func (r DateRange) String() string {
	format := func(t *time.Time, shift int) string {
		if t == nil {
			return "any"
		}

		return t.AddDate(0, 0, shift).Format(dateLayout)
	}

	return format(r.start, 0) + " to " + format(r.end, -1)
}

// ExtractOptions filter the items turned into records.
type ExtractOptions struct {
	// Dates keeps only items captured in the range. Items without a date are
	// skipped when the range is not open.
	Dates DateRange

	// IncludeNonCamera keeps screenshots and other items without camera
	// metadata.
	IncludeNonCamera bool

	// OnItem, if set, is called once per item read from a source.
	OnItem func(Item)
}

// ExtractMetrics tracks statistics about the extraction.
type ExtractMetrics struct {
	Items              int
	Extracted          int
	NoLocation         int
	InvalidCoordinates int
	OutsideDateRange   int
	NonCamera          int
}

// Merge combines two ExtractMetrics.
func (m *ExtractMetrics) Merge(o *ExtractMetrics) *ExtractMetrics {
	m.Items += o.Items
	m.Extracted += o.Extracted
	m.NoLocation += o.NoLocation
	m.InvalidCoordinates += o.InvalidCoordinates
	m.OutsideDateRange += o.OutsideDateRange
	m.NonCamera += o.NonCamera

	return m
}

// Extract reads src and returns the records of its geotagged items that pass
// the filters, in library order.
func Extract(ctx context.Context, src Source, opts ExtractOptions) ([]locations.Record, *ExtractMetrics, error) {
	items, err := src.Items(ctx)
	if err != nil {
		return nil, &ExtractMetrics{}, fmt.Errorf("reading %s: %w", src.Name(), err)
	}

	records, metrics := extractItems(items, opts)

	return records, metrics, nil
}

// ExtractAll extracts every source in turn and concatenates the records.
func ExtractAll(ctx context.Context, sources []Source, opts ExtractOptions) ([]locations.Record, *ExtractMetrics, error) {
	var records []locations.Record

	metrics := &ExtractMetrics{}

	for _, src := range sources {
		r, m, err := Extract(ctx, src, opts)
		metrics.Merge(m)

		if err != nil {
			return records, metrics, err
		}

		records = append(records, r...)
	}

	return records, metrics, nil
}

func extractItems(items []Item, opts ExtractOptions) ([]locations.Record, *ExtractMetrics) {
	metrics := &ExtractMetrics{}
	records := make([]locations.Record, 0, len(items))

	for _, item := range items {
		metrics.Items++

		if opts.OnItem != nil {
			opts.OnItem(item)
		}

		if item.Location == nil {
			metrics.NoLocation++

			continue
		}

		if !item.Location.Valid() {
			metrics.InvalidCoordinates++

			continue
		}

		if !opts.Dates.IsZero() {
			if item.CapturedAt == nil || !opts.Dates.Contains(*item.CapturedAt) {
				metrics.OutsideDateRange++

				continue
			}
		}

		if !opts.IncludeNonCamera && !item.FromCamera() {
			metrics.NonCamera++

			continue
		}

		records = append(records, locations.Record{
			Point:       *item.Location,
			CapturedAt:  item.CapturedAt,
			Region:      textutils.NormalizeRegion(item.Place, locations.UnknownRegion),
			SourceID:    item.ID,
			IsVideo:     item.IsVideo,
			IsFavorite:  item.IsFavorite,
			Description: item.Description,
		})
		metrics.Extracted++
	}

	return records, metrics
}
