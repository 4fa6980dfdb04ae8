// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

// Package library reads geotagged media items out of photo libraries and
// turns them into location records.
//
// Three sources are supported:
//
//   - photos: an Apple Photos library, read straight from its Photos.sqlite
//     database in read-only mode.
//   - catalog: a CSV, JSON or Parquet export with one row per media item,
//     queried through DuckDB.
//   - exif: a directory tree of JPEG and TIFF files carrying EXIF GPS tags.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JulianYG/GeoMemo/locations"
	"github.com/JulianYG/GeoMemo/spatial"
)

// ErrSourceAccess is returned, wrapped, when a library cannot be opened or
// read. Nothing is extracted in that case.
var ErrSourceAccess = errors.New("library not accessible")

// Item is a media item as stored in a library, before any filtering.
type Item struct {
	ID string
	// Location is nil when the item is not geotagged.
	Location   *spatial.Point
	CapturedAt *time.Time
	// Place is the reverse geocoded place label, possibly empty.
	Place       string
	CameraMake  string
	CameraModel string
	IsVideo     bool
	IsFavorite  bool
	Description string
}

// FromCamera reports whether the item was taken by a camera. Screenshots
// and saved images carry neither a make nor a model.
func (i Item) FromCamera() bool {
	return i.CameraMake != "" || i.CameraModel != ""
}

// Source yields the items of one library.
type Source interface {
	// Name identifies the library in logs.
	Name() string
	// Items reads every item of the library, in library order.
	Items(ctx context.Context) ([]Item, error)
}

// Kind selects a Source implementation.
type Kind string

const (
	KindPhotos  Kind = "photos"
	KindCatalog Kind = "catalog"
	KindExif    Kind = "exif"
)

// Kinds lists the supported source kinds.
var Kinds = []Kind{KindPhotos, KindCatalog, KindExif}

// New returns the Source of the given kind reading path.
func New(kind Kind, path string) (Source, error) {
	switch kind {
	case KindPhotos:
		return NewPhotosSource(path), nil
	case KindCatalog:
		return NewCatalogSource(path), nil
	case KindExif:
		return NewExifSource(path), nil
	default:
		return nil, fmt.Errorf("%w: unknown source %q, expected one of %v", locations.ErrInvalidParameter, kind, Kinds)
	}
}

// DefaultPhotosLibrary returns the location of the system Photos library on
// macOS.
func DefaultPhotosLibrary() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, "Pictures", "Photos Library.photoslibrary")
}

func accessError(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceAccess, path, err)
}
