// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/JulianYG/GeoMemo/spatial"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	// maker notes carry the timezone of Canon cameras
	exif.RegisterParsers(mknote.All...)
}

var exifExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// ExifSource walks a directory tree and reads the EXIF metadata of its JPEG
// and TIFF files. Item ids are paths relative to the root.
type ExifSource struct {
	root string
}

func NewExifSource(root string) *ExifSource {
	return &ExifSource{root: root}
}

func (s *ExifSource) Name() string {
	return "directory " + s.root
}

func (s *ExifSource) Items(ctx context.Context) ([]Item, error) {
	fi, err := os.Stat(s.root)
	if err != nil {
		return nil, accessError(s.root, err)
	}

	if !fi.IsDir() {
		return nil, accessError(s.root, errors.New("not a directory"))
	}

	var (
		items    []Item
		failures []error
	)

	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || !exifExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			rel = path
		}

		item, err := readExif(path)
		if err != nil {
			failures = append(failures, err)
		}

		item.ID = filepath.ToSlash(rel)
		items = append(items, item)

		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		return nil, accessError(s.root, err)
	}

	if len(failures) > 0 {
		log.Printf("⚠️  %d of %d files in %s have no readable EXIF: %v", len(failures), len(items), s.root, errors.Join(failures...))
	}

	return items, nil
}

// readExif returns the item described by the file's metadata. Files without
// EXIF come back as an item without location along with the decode error.
func readExif(path string) (Item, error) {
	var item Item

	f, err := os.Open(path)
	if err != nil {
		return item, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return item, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if lat, lng, err := x.LatLong(); err == nil {
		item.Location = &spatial.Point{Lat: lat, Lng: lng}
	}

	if t, err := x.DateTime(); err == nil {
		item.CapturedAt = &t
	}

	item.CameraMake = exifString(x, exif.Make)
	item.CameraModel = exifString(x, exif.Model)
	item.Description = exifString(x, exif.ImageDescription)

	return item, nil
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}

	s, err := tag.StringVal()
	if err != nil {
		return ""
	}

	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
