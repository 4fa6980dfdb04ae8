// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

// Package export writes location records in the formats GeoGuessr map
// editors import: a Latitude,Longitude CSV and a GeoJSON feature collection
// with one MultiPoint per region.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/JulianYG/GeoMemo/locations"
	"github.com/JulianYG/GeoMemo/utils/textutils"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Summary describes what an export wrote.
type Summary struct {
	// Written is the number of coordinates written.
	Written int
	// Skipped counts records with unusable coordinates.
	Skipped int
	// Regions is the number of GeoJSON features.
	Regions int
}

// WriteCSV writes a Latitude,Longitude header followed by one row per record.
func WriteCSV(w io.Writer, records []locations.Record) (Summary, error) {
	valid, skipped := locations.FilterValid(records)

	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Latitude", "Longitude"}); err != nil {
		return Summary{}, fmt.Errorf("writing header: %w", err)
	}

	for _, r := range valid {
		row := []string{formatCoordinate(r.Lat), formatCoordinate(r.Lng)}
		if err := cw.Write(row); err != nil {
			return Summary{}, fmt.Errorf("writing %s: %w", r.SourceID, err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return Summary{}, fmt.Errorf("flushing csv: %w", err)
	}

	return Summary{Written: len(valid), Skipped: skipped}, nil
}

// WriteGeoJSON writes a FeatureCollection with one MultiPoint feature per
// region, ordered by region. Points are [longitude, latitude] pairs in
// record order.
func WriteGeoJSON(w io.Writer, records []locations.Record) (Summary, error) {
	valid, skipped := locations.FilterValid(records)

	byRegion := make(map[string]orb.MultiPoint)
	for _, r := range valid {
		region := r.Region
		if region == "" {
			region = locations.UnknownRegion
		}

		byRegion[region] = append(byRegion[region], orb.Point{r.Lng, r.Lat})
	}

	regions := make([]string, 0, len(byRegion))
	for region := range byRegion {
		regions = append(regions, region)
	}

	textutils.SortStrings(regions)

	fc := geojson.NewFeatureCollection()

	for _, region := range regions {
		f := geojson.NewFeature(byRegion[region])
		f.Properties["region"] = region
		fc.Append(f)
	}

	raw, err := fc.MarshalJSON()
	if err != nil {
		return Summary{}, fmt.Errorf("encoding geojson: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return Summary{}, fmt.Errorf("indenting geojson: %w", err)
	}

	out.WriteByte('\n')

	if _, err := out.WriteTo(w); err != nil {
		return Summary{}, fmt.Errorf("writing geojson: %w", err)
	}

	return Summary{Written: len(valid), Skipped: skipped, Regions: len(regions)}, nil
}

// WriteCSVFile writes the CSV export to path, replacing any existing file.
func WriteCSVFile(path string, records []locations.Record) (Summary, error) {
	return writeFile(path, records, WriteCSV)
}

// WriteGeoJSONFile writes the GeoJSON export to path, replacing any
// existing file.
func WriteGeoJSONFile(path string, records []locations.Record) (Summary, error) {
	return writeFile(path, records, WriteGeoJSON)
}

func writeFile(path string, records []locations.Record, write func(io.Writer, []locations.Record) (Summary, error)) (Summary, error) {
	f, err := os.Create(path)
	if err != nil {
		return Summary{}, fmt.Errorf("creating %s: %w", path, err)
	}

	s, err := write(f, records)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing %s: %w", path, closeErr)
	}

	return s, err
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
