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

// This file defines the data model of a glyph design: points on the editing grid,
// the shapes stitched from them, and the document that owns every glyph.
// The JSON form is what gets persisted and exchanged via export/import.

// SchemaVersion is the current persisted document layout.
// Version 1 documents carry no schemaVersion field and use {x,y} vertex objects.
const SchemaVersion = 2

// Point is an (x, y) position in grid pixel space, origin top-left, Y down.
// It serializes as a two-element JSON array.
type Point [2]float64

func (p Point) X() float64 { return p[0] }
func (p Point) Y() float64 { return p[1] }

// CornerTriple is one cut corner of a grid cell in its fixed winding order.
type CornerTriple [3]Point

// Shape is a completed six-vertex polygon made of two stitched corner triples.
type Shape struct {
	ID       string   `json:"id"`
	Vertices [6]Point `json:"vertices"`
}

// Glyph is one character's record: identity plus its ordered shapes.
type Glyph struct {
	Character string  `json:"character"`
	Unicode   int     `json:"unicode"`
	Shapes    []Shape `json:"shapes"`
}

// FontSettings holds the font-wide metadata written into the exported font.
type FontSettings struct {
	FamilyName   string `json:"familyName"`
	StyleName    string `json:"styleName"`
	UnitsPerEm   int    `json:"unitsPerEm"`
	Ascender     int    `json:"ascender"`
	Descender    int    `json:"descender"`
	AdvanceWidth int    `json:"advanceWidth"`
}

// Document is the whole font in progress.
type Document struct {
	SchemaVersion int          `json:"schemaVersion"`
	FontSettings  FontSettings `json:"fontSettings"`
	Glyphs        []Glyph      `json:"glyphs"`
}

// Glyph returns the record for the given character.
func (d *Document) Glyph(char string) (*Glyph, bool) {
	for i := range d.Glyphs {
		if d.Glyphs[i].Character == char {
			return &d.Glyphs[i], true
		}
	}
	return nil, false
}

// GlyphByCode returns the record with the given code-point.
func (d *Document) GlyphByCode(code int) (*Glyph, bool) {
	for i := range d.Glyphs {
		if d.Glyphs[i].Unicode == code {
			return &d.Glyphs[i], true
		}
	}
	return nil, false
}

// ShapeCount is the number of shapes across all glyphs.
func (d *Document) ShapeCount() int {
	n := 0
	for _, g := range d.Glyphs {
		n += len(g.Shapes)
	}
	return n
}

// Clone returns a deep copy; the shape arrays are values so copying slices suffices.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{SchemaVersion: d.SchemaVersion, FontSettings: d.FontSettings}
	out.Glyphs = make([]Glyph, len(d.Glyphs))
	for i, g := range d.Glyphs {
		out.Glyphs[i] = g.Clone()
	}
	return out
}

// Clone returns a copy of the glyph that shares no shape storage.
func (g Glyph) Clone() Glyph {
	shapes := make([]Shape, len(g.Shapes))
	copy(shapes, g.Shapes)
	g.Shapes = shapes
	return g
}
