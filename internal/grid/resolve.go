/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package grid turns clicks on the editing grid into corner triples and
// stitches pairs of triples into six-vertex shapes.
package grid

import (
	"errors"
	"fmt"

	"epitax/internal/domain"
)

// ErrOutOfGrid is returned when a click lies outside the artboard.
var ErrOutOfGrid = errors.New("click outside grid")

// Quadrant of a cell that a click fell into.
type Quadrant uint8

const (
	TopLeft Quadrant = iota
	TopRight
	BottomLeft
	BottomRight
)

func (q Quadrant) String() string {
	switch q {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	}
	return fmt.Sprintf("Quadrant(%d)", uint8(q))
}

// Classify maps a within-cell offset to its quadrant. The comparisons are strict,
// so an offset of exactly half a cell counts as bottom (or right).
func Classify(cell, wx, wy float64) Quadrant {
	half := cell / 2
	top, left := wy < half, wx < half
	switch {
	case top && left:
		return TopLeft
	case top:
		return TopRight
	case left:
		return BottomLeft
	default:
		return BottomRight
	}
}

// Resolve returns the corner triple for a click at offset (wx, wy) inside
// cell (col, row). The middle vertex is the corner of the clicked quadrant.
func Resolve(cell float64, col, row int, wx, wy float64) domain.CornerTriple {
	x0, y0 := float64(col)*cell, float64(row)*cell
	x1, y1 := x0+cell, y0+cell
	tl := domain.Point{x0, y0}
	tr := domain.Point{x1, y0}
	bl := domain.Point{x0, y1}
	br := domain.Point{x1, y1}

	switch Classify(cell, wx, wy) {
	case TopLeft:
		return domain.CornerTriple{tr, tl, bl}
	case TopRight:
		return domain.CornerTriple{tl, tr, br}
	case BottomLeft:
		return domain.CornerTriple{tl, bl, br}
	default:
		return domain.CornerTriple{bl, br, tr}
	}
}

// Check validates a click against the grid before it reaches Resolve.
func Check(g domain.Grid, col, row int, wx, wy float64) error {
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return fmt.Errorf("%w: cell (%d,%d) not in %dx%d", ErrOutOfGrid, col, row, g.Cols, g.Rows)
	}
	if wx < 0 || wx >= g.CellSize || wy < 0 || wy >= g.CellSize {
		return fmt.Errorf("%w: offset (%v,%v) not in [0,%v)", ErrOutOfGrid, wx, wy, g.CellSize)
	}
	return nil
}

// Locate splits an artboard position into cell index and within-cell offset.
func Locate(g domain.Grid, x, y float64) (col, row int, wx, wy float64, err error) {
	if x < 0 || y < 0 || x >= g.Width() || y >= g.Height() {
		return 0, 0, 0, 0, fmt.Errorf("%w: position (%v,%v)", ErrOutOfGrid, x, y)
	}
	col, row = int(x/g.CellSize), int(y/g.CellSize)
	return col, row, x - float64(col)*g.CellSize, y - float64(row)*g.CellSize, nil
}
