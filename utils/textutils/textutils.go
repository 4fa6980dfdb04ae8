// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils holds text helpers shared by the library, export and
// command packages.
package textutils

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"
)

var printer = message.NewPrinter(language.English)

// FormatInt formats an integer with thousands separators for human readability.
func FormatInt(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatFloat formats a float with thousands separators and the given number
// of decimals.
func FormatFloat(f float64, decimals int) string {
	return printer.Sprintf("%.*f", decimals, f)
}

// NormalizeRegion turns a place label into the region used to group
// locations. "City, State, Country" style labels are reduced to their last
// component; empty labels become fallback.
func NormalizeRegion(place, fallback string) string {
	s := norm.NFC.String(strings.TrimSpace(place))

	if i := strings.LastIndex(s, ","); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}

	if s == "" {
		return fallback
	}

	return s
}

// SortStrings sorts labels in place using the root collation order, so that
// accented region names sit next to their unaccented neighbours.
func SortStrings(labels []string) {
	collate.New(language.Und).SortStrings(labels)
}
