// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JulianYG/GeoMemo/spatial"
	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	"github.com/google/uuid"
)

// catalogColumn is a field of Item read from a catalog, with the column
// names accepted for it and the DuckDB type it is cast to.
type catalogColumn struct {
	names []string
	typ   string
}

var catalogColumns = []catalogColumn{
	{[]string{"id", "uuid", "source_id", "filename", "path"}, "VARCHAR"},
	{[]string{"latitude", "lat"}, "DOUBLE"},
	{[]string{"longitude", "lng", "lon", "long"}, "DOUBLE"},
	{[]string{"captured_at", "date", "datetime", "timestamp"}, "TIMESTAMP"},
	{[]string{"region", "place", "country"}, "VARCHAR"},
	{[]string{"camera_make", "make"}, "VARCHAR"},
	{[]string{"camera_model", "model"}, "VARCHAR"},
	{[]string{"is_video", "video"}, "BOOLEAN"},
	{[]string{"is_favorite", "favorite"}, "BOOLEAN"},
	{[]string{"description", "title"}, "VARCHAR"},
}

// Indexes into catalogColumns.
const (
	colID = iota
	colLat
	colLng
	colDate
	colPlace
	colMake
	colModel
)

// CatalogSource reads a tabular export of a photo library. Column names are
// matched case-insensitively; missing columns read as NULL and rows without
// an id get a stable one derived from the file and row number.
type CatalogSource struct {
	path string
}

// NewCatalogSource returns a source for a .csv, .tsv, .json, .jsonl,
// .ndjson or .parquet file.
func NewCatalogSource(path string) *CatalogSource {
	return &CatalogSource{path: path}
}

func (s *CatalogSource) Name() string {
	return "catalog " + s.path
}

// tableFunction returns the DuckDB reader for the file.
func (s *CatalogSource) tableFunction() (string, error) {
	quoted := "'" + strings.ReplaceAll(s.path, "'", "''") + "'"

	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".csv", ".tsv":
		return "read_csv_auto(" + quoted + ")", nil
	case ".json", ".jsonl", ".ndjson":
		return "read_json_auto(" + quoted + ")", nil
	case ".parquet":
		return "read_parquet(" + quoted + ")", nil
	default:
		return "", fmt.Errorf("unsupported catalog format %q", filepath.Ext(s.path))
	}
}

func (s *CatalogSource) Items(ctx context.Context) ([]Item, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, accessError(s.path, err)
	}

	from, err := s.tableFunction()
	if err != nil {
		return nil, accessError(s.path, err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	defer db.Close()

	present, err := catalogHeader(ctx, db, from)
	if err != nil {
		return nil, accessError(s.path, err)
	}

	if present[colLat] == "" || present[colLng] == "" {
		return nil, accessError(s.path, errors.New("no latitude/longitude columns"))
	}

	if present[colMake] == "" && present[colModel] == "" {
		log.Printf("⚠️  %s has no camera columns, every row counts as non-camera media", s.path)
	}

	selects := make([]string, len(catalogColumns))
	for i, c := range catalogColumns {
		if present[i] == "" {
			selects[i] = "CAST(NULL AS " + c.typ + ")"
		} else {
			selects[i] = fmt.Sprintf("TRY_CAST(%s AS %s)", quoteIdent(present[i]), c.typ)
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), from)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, accessError(s.path, fmt.Errorf("querying catalog: %w", err))
	}
	defer rows.Close()

	var items []Item

	for row := 0; rows.Next(); row++ {
		var (
			id, place, cameraMake, cameraModel, description sql.NullString
			lat, lng                                        sql.NullFloat64
			captured                                        sql.NullTime
			video, favorite                                 sql.NullBool
		)

		if err := rows.Scan(&id, &lat, &lng, &captured, &place, &cameraMake, &cameraModel,
			&video, &favorite, &description); err != nil {
			return nil, accessError(s.path, fmt.Errorf("scanning row %d: %w", row, err))
		}

		item := Item{
			ID:          id.String,
			Place:       place.String,
			CameraMake:  cameraMake.String,
			CameraModel: cameraModel.String,
			IsVideo:     video.Valid && video.Bool,
			IsFavorite:  favorite.Valid && favorite.Bool,
			Description: description.String,
		}

		if item.ID == "" {
			item.ID = uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "file://%s#%d", s.path, row)).String()
		}

		if lat.Valid && lng.Valid {
			item.Location = &spatial.Point{Lat: lat.Float64, Lng: lng.Float64}
		}

		if captured.Valid {
			t := captured.Time.In(time.UTC)
			item.CapturedAt = &t
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, accessError(s.path, err)
	}

	return items, nil
}

// catalogHeader maps each catalog column to the matching column name of the
// file, "" when absent.
func catalogHeader(ctx context.Context, db *sql.DB, from string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+from+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	byName := make(map[string]string, len(names))
	for _, n := range names {
		byName[strings.ToLower(strings.TrimSpace(n))] = n
	}

	present := make([]string, len(catalogColumns))

	for i, c := range catalogColumns {
		for _, alias := range c.names {
			if n, ok := byName[alias]; ok {
				present[i] = n

				break
			}
		}
	}

	return present, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
