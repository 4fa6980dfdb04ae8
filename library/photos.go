// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/JulianYG/GeoMemo/spatial"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// coreDataEpoch is the reference date of Core Data timestamps.
var coreDataEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// noLocation is the coordinate Photos stores for assets without a location.
const noLocation = -180.0

const (
	kindVideo  = 1
	notTrashed = 0
)

// photosQuery reads non trashed assets with their camera metadata,
// description and moment title. The moment title is the place label Photos
// shows above a group of assets ("Paris, Île-de-France, France").
const photosQuery = `
SELECT
	a.ZUUID,
	a.ZLATITUDE,
	a.ZLONGITUDE,
	CAST(a.ZDATECREATED AS REAL),
	a.ZKIND,
	a.ZFAVORITE,
	e.ZCAMERAMAKE,
	e.ZCAMERAMODEL,
	d.ZLONGDESCRIPTION,
	m.ZTITLE
FROM ZASSET a
LEFT JOIN ZEXTENDEDATTRIBUTES e ON e.ZASSET = a.Z_PK
LEFT JOIN ZADDITIONALASSETATTRIBUTES aa ON aa.ZASSET = a.Z_PK
LEFT JOIN ZASSETDESCRIPTION d ON d.Z_PK = aa.ZASSETDESCRIPTION
LEFT JOIN ZMOMENT m ON m.Z_PK = a.ZMOMENT
WHERE COALESCE(a.ZTRASHEDSTATE, 0) = ?
ORDER BY a.Z_PK`

// PhotosSource reads an Apple Photos library.
type PhotosSource struct {
	path string
}

// NewPhotosSource returns a source for the library at path, either the
// .photoslibrary bundle or its Photos.sqlite database.
func NewPhotosSource(path string) *PhotosSource {
	return &PhotosSource{path: path}
}

func (s *PhotosSource) Name() string {
	return "Photos library " + s.path
}

// DatabasePath returns the Photos.sqlite file the source reads.
func (s *PhotosSource) DatabasePath() (string, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return "", err
	}

	if !fi.IsDir() {
		return s.path, nil
	}

	db := filepath.Join(s.path, "database", "Photos.sqlite")
	if _, err := os.Stat(db); err != nil {
		return "", err
	}

	return db, nil
}

func (s *PhotosSource) Items(ctx context.Context) ([]Item, error) {
	path, err := s.DatabasePath()
	if err != nil {
		return nil, accessError(s.path, err)
	}

	// read-only, the Photos app may hold the database open
	dsn := (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}).String()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, accessError(path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, photosQuery, notTrashed)
	if err != nil {
		return nil, accessError(path, fmt.Errorf("querying assets: %w", err))
	}
	defer rows.Close()

	var items []Item

	for rows.Next() {
		var (
			uuid, cameraMake, cameraModel, description, place sql.NullString
			lat, lng, created                                 sql.NullFloat64
			kind, favorite                                    sql.NullInt64
		)

		if err := rows.Scan(&uuid, &lat, &lng, &created, &kind, &favorite,
			&cameraMake, &cameraModel, &description, &place); err != nil {
			return nil, accessError(path, fmt.Errorf("scanning asset: %w", err))
		}

		item := Item{
			ID:          uuid.String,
			Place:       place.String,
			CameraMake:  cameraMake.String,
			CameraModel: cameraModel.String,
			IsVideo:     kind.Valid && kind.Int64 == kindVideo,
			IsFavorite:  favorite.Valid && favorite.Int64 != 0,
			Description: description.String,
		}

		if lat.Valid && lng.Valid && !(lat.Float64 == noLocation && lng.Float64 == noLocation) {
			item.Location = &spatial.Point{Lat: lat.Float64, Lng: lng.Float64}
		}

		if created.Valid {
			t := fromCoreData(created.Float64)
			item.CapturedAt = &t
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		return nil, accessError(path, err)
	}

	log.Printf("Read %d assets from %s", len(items), path)

	return items, nil
}

func fromCoreData(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)

	return coreDataEpoch.Add(time.Duration(whole) * time.Second).Add(time.Duration(frac * float64(time.Second)))
}
