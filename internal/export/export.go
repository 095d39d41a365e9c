/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders glyph designs to SVG, PNG and PDF.
package export

import (
	"fmt"
	"image/color"

	"epitax/internal/domain"
	"epitax/internal/outline"
)

// Color is an RGBA color used by the exporters. A zero Color means "use the
// exporter's default".
type Color struct{ R, G, B, A uint8 }

// Default palette.
var (
	Black     = Color{0, 0, 0, 255}
	White     = Color{255, 255, 255, 255}
	GuideGrey = Color{200, 200, 200, 255}
	Highlight = Color{220, 40, 40, 255}
)

func (c Color) isZero() bool { return c == Color{} }

func (c Color) or(def Color) Color {
	if c.isZero() {
		return def
	}
	return c
}

func (c Color) rgba() color.RGBA { return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

// tile is a drawn glyph together with its merged outline in font units.
type tile struct {
	Glyph domain.Glyph
	Path  outline.Path
}

// drawnTiles merges every glyph of doc that has shapes. Glyphs whose merged
// outline is empty are left out.
func drawnTiles(doc *domain.Document, g domain.Grid, u outline.Unioner) ([]tile, error) {
	if u == nil {
		u = outline.Default
	}
	var out []tile
	for _, rec := range doc.Glyphs {
		if len(rec.Shapes) == 0 {
			continue
		}
		var p outline.Path
		if _, err := outline.Interpret(outline.Merge(rec.Shapes, g.BaselineY(), u), &p); err != nil {
			return nil, fmt.Errorf("glyph %q: %w", rec.Character, err)
		}
		if p.Len() == 0 {
			continue
		}
		out = append(out, tile{Glyph: rec.Clone(), Path: p})
	}
	return out, nil
}

// placement maps font units (Y up, baseline at 0) into a target space with Y
// down: x' = X + x*Scale, y' = Baseline - y*Scale.
type placement struct {
	X, Baseline, Scale float64
}

func (m placement) apply(x, y float64) (float64, float64) {
	return m.X + x*m.Scale, m.Baseline - y*m.Scale
}

// label is the caption used for a glyph tile.
func label(g domain.Glyph) string {
	if len(g.Character) == 1 && g.Character[0] > ' ' && g.Character[0] < 0x7f {
		return g.Character
	}
	return fmt.Sprintf("U+%04X", g.Unicode)
}
