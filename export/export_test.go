// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/JulianYG/GeoMemo/locations"
	"github.com/JulianYG/GeoMemo/spatial"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(lat, lng float64, region string) locations.Record {
	return locations.Record{Point: spatial.Point{Lat: lat, Lng: lng}, Region: region}
}

var sample = []locations.Record{
	rec(37.7749, -122.4194, "United States"),
	rec(19.4326, -99.1332, "México"),
	rec(40.7128, -74.006, "United States"),
	rec(0, 0, "Nowhere"),
	rec(-33.8688, 151.2093, ""),
	rec(95, 10, "Broken"),
	rec(48.8566, 2.3522, "France"),
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer

	s, err := WriteCSV(&buf, sample)
	require.NoError(t, err)

	want := "Latitude,Longitude\n" +
		"37.7749,-122.4194\n" +
		"19.4326,-99.1332\n" +
		"40.7128,-74.006\n" +
		"-33.8688,151.2093\n" +
		"48.8566,2.3522\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, Summary{Written: 5, Skipped: 2}, s)
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer

	s, err := WriteCSV(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "Latitude,Longitude\n", buf.String())
	assert.Zero(t, s.Written)
}

func TestWriteGeoJSON(t *testing.T) {
	var buf bytes.Buffer

	s, err := WriteGeoJSON(&buf, sample)
	require.NoError(t, err)
	assert.Equal(t, Summary{Written: 5, Skipped: 2, Regions: 4}, s)

	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 4)

	var regions []string
	for _, f := range fc.Features {
		regions = append(regions, f.Properties.MustString("region"))
	}

	// collation puts the accented name in alphabetical position
	assert.Equal(t, []string{"France", "México", "United States", "Unknown"}, regions)

	us := fc.Features[2]
	assert.Equal(t, orb.MultiPoint{{-122.4194, 37.7749}, {-74.006, 40.7128}}, us.Geometry)
	assert.Equal(t, orb.MultiPoint{{151.2093, -33.8688}}, fc.Features[3].Geometry)

	assert.Contains(t, buf.String(), "\n  \"features\": [", "indented output")
	assert.Contains(t, buf.String(), "México", "non-ASCII names are kept as is")
}

func TestWriteGeoJSONEmpty(t *testing.T) {
	var buf bytes.Buffer

	s, err := WriteGeoJSON(&buf, nil)
	require.NoError(t, err)
	assert.Zero(t, s.Regions)

	assert.JSONEq(t, `{"type": "FeatureCollection", "features": []}`, buf.String())
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "out.csv")
	_, err := WriteCSVFile(csvPath, sample[:1])
	require.NoError(t, err)

	b, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "Latitude,Longitude\n37.7749,-122.4194\n", string(b))

	geoPath := filepath.Join(dir, "out.geojson")
	s, err := WriteGeoJSONFile(geoPath, sample[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, s.Regions)

	_, err = WriteCSVFile(filepath.Join(dir, "missing", "out.csv"), sample)
	assert.Error(t, err)
}
