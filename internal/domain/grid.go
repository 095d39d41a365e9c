/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import "fmt"

// Grid describes the artboard every glyph is drawn on.
type Grid struct {
	Rows          int     `json:"rows" yaml:"rows"`
	Cols          int     `json:"cols" yaml:"cols"`
	CellSize      float64 `json:"cellSize" yaml:"cell_size"`
	DescenderRows int     `json:"descenderRows" yaml:"descender_rows"`
	XHeightRows   int     `json:"xHeightRows" yaml:"x_height_rows"`
}

// DefaultGrid is the 6x8 grid of 100px cells with two descender rows.
func DefaultGrid() Grid {
	return Grid{Rows: 8, Cols: 6, CellSize: 100, DescenderRows: 2, XHeightRows: 4}
}

func (g Grid) Width() float64  { return float64(g.Cols) * g.CellSize }
func (g Grid) Height() float64 { return float64(g.Rows) * g.CellSize }

// BaselineY is the grid Y of the baseline, counted from the top.
func (g Grid) BaselineY() float64 { return float64(g.Rows-g.DescenderRows) * g.CellSize }

// Ascender is the height above the baseline in font units.
func (g Grid) Ascender() int { return int(g.BaselineY()) }

// Descender is negative: the depth below the baseline.
func (g Grid) Descender() int { return -int(float64(g.DescenderRows) * g.CellSize) }

func (g Grid) XHeight() int { return int(float64(g.XHeightRows) * g.CellSize) }

// Validate reports impossible grid configurations.
func (g Grid) Validate() error {
	switch {
	case g.Rows <= 0 || g.Cols <= 0:
		return fmt.Errorf("grid needs positive rows and cols, got %dx%d", g.Cols, g.Rows)
	case g.CellSize <= 0:
		return fmt.Errorf("grid cell size must be positive, got %v", g.CellSize)
	case g.DescenderRows < 0 || g.DescenderRows >= g.Rows:
		return fmt.Errorf("descender rows %d out of range for %d rows", g.DescenderRows, g.Rows)
	case g.XHeightRows < 0 || g.XHeightRows > g.Rows-g.DescenderRows:
		return fmt.Errorf("x-height rows %d out of range", g.XHeightRows)
	}
	return nil
}

// Default font naming for new documents.
const (
	DefaultFamilyName = "MyCustomFont"
	DefaultStyleName  = "Regular"
	DefaultUnitsPerEm = 1000
)

// ASCIIGlyphs returns empty records for the printable ASCII range '!'..'~'.
func ASCIIGlyphs() []Glyph {
	out := make([]Glyph, 0, 126-33+1)
	for c := 33; c <= 126; c++ {
		out = append(out, Glyph{Character: string(rune(c)), Unicode: c, Shapes: []Shape{}})
	}
	return out
}

// NewDocument creates a fresh document for the grid with the default glyph set.
func NewDocument(g Grid) *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		FontSettings: FontSettings{
			FamilyName:   DefaultFamilyName,
			StyleName:    DefaultStyleName,
			UnitsPerEm:   DefaultUnitsPerEm,
			Ascender:     g.Ascender(),
			Descender:    g.Descender(),
			AdvanceWidth: int(g.Width()),
		},
		Glyphs: ASCIIGlyphs(),
	}
}
