// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"github.com/uber/h3-go/v4"
)

// hexEdgeLength is the average H3 hexagon edge length in meters, by resolution.
var hexEdgeLength = [...]float64{
	1281256.011, 483056.8391, 182512.9565, 68979.22179,
	26071.75968, 9854.090990, 3724.532667, 1406.475763,
	531.414010, 200.786148, 75.863783, 28.663897,
	10.830188, 4.092010, 1.546100, 0.584169,
}

// Cell sizes vary across the globe, the edge must comfortably exceed the
// query radius so that a disk of rings around the query cell covers it.
const (
	edgeToRadius = 3
	ringDistance = 2
)

// Index buckets points by H3 cell so that "is there anything closer than
// radius" queries only look at nearby points. Results are the same as a full
// scan; the index only prunes candidates. It falls back to a linear scan when
// the radius is too large for any resolution or H3 reports an error.
type Index struct {
	radius     float64
	resolution int
	points     []Point
	cells      map[h3.Cell][]int
	overflow   []int // points that could not be bucketed
}

// NewIndex creates an index tuned for queries of the given radius in meters.
func NewIndex(radius float64) *Index {
	ix := &Index{
		radius:     radius,
		resolution: -1,
		cells:      make(map[h3.Cell][]int),
	}

	for res := len(hexEdgeLength) - 1; res >= 0; res-- {
		if hexEdgeLength[res] >= edgeToRadius*radius {
			ix.resolution = res

			break
		}
	}

	return ix
}

// Len returns the number of indexed points.
func (ix *Index) Len() int {
	return len(ix.points)
}

// Insert adds a point and returns its position in insertion order.
func (ix *Index) Insert(p Point) int {
	i := len(ix.points)
	ix.points = append(ix.points, p)

	cell, ok := ix.cell(p)
	if !ok {
		ix.overflow = append(ix.overflow, i)

		return i
	}

	ix.cells[cell] = append(ix.cells[cell], i)

	return i
}

// Nearest returns the position of the indexed point closest to p among those
// strictly closer than the index radius. ok is false when there is none.
// Ties resolve to the earliest inserted point.
func (ix *Index) Nearest(p Point) (int, float64, bool) {
	best, bestDist := -1, 0.0

	visit := func(i int) {
		d := p.HaversineDistance(ix.points[i])
		if d >= ix.radius {
			return
		}

		if best < 0 || d < bestDist || (d == bestDist && i < best) {
			best, bestDist = i, d
		}
	}

	candidates, ok := ix.candidates(p)
	if !ok {
		for i := range ix.points {
			visit(i)
		}

		return best, bestDist, best >= 0
	}

	for _, i := range candidates {
		visit(i)
	}

	for _, i := range ix.overflow {
		visit(i)
	}

	return best, bestDist, best >= 0
}

func (ix *Index) cell(p Point) (h3.Cell, bool) {
	if ix.resolution < 0 {
		return 0, false
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), ix.resolution)
	if err != nil {
		return 0, false
	}

	return cell, true
}

func (ix *Index) candidates(p Point) ([]int, bool) {
	origin, ok := ix.cell(p)
	if !ok {
		return nil, false
	}

	disk, err := h3.GridDisk(origin, ringDistance)
	if err != nil {
		return nil, false
	}

	var out []int
	for _, c := range disk {
		out = append(out, ix.cells[c]...)
	}

	return out, true
}
