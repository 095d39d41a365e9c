/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package fontgen

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/postscript/funit"
	"seehuhn.de/go/postscript/type1"
	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/cff"
	"seehuhn.de/go/sfnt/cmap"
	"seehuhn.de/go/sfnt/glyph"
	"seehuhn.de/go/sfnt/os2"
)

// cffPen feeds outline primitives into a CFF glyph. CFF has no quadratic
// segments, so those are raised to cubics. Contours close implicitly.
type cffPen struct {
	g              *cff.Glyph
	cx, cy, sx, sy float64
}

func (p *cffPen) MoveTo(x, y float64) {
	p.g.MoveTo(x, y)
	p.cx, p.cy, p.sx, p.sy = x, y, x, y
}

func (p *cffPen) LineTo(x, y float64) {
	p.g.LineTo(x, y)
	p.cx, p.cy = x, y
}

func (p *cffPen) QuadTo(qx, qy, x, y float64) {
	c1x, c1y := p.cx+2*(qx-p.cx)/3, p.cy+2*(qy-p.cy)/3
	c2x, c2y := x+2*(qx-x)/3, y+2*(qy-y)/3
	p.CubicTo(c1x, c1y, c2x, c2y, x, y)
}

func (p *cffPen) CubicTo(x1, y1, x2, y2, x, y float64) {
	p.g.CurveTo(x1, y1, x2, y2, x, y)
	p.cx, p.cy = x, y
}

func (p *cffPen) Close() { p.cx, p.cy = p.sx, p.sy }

// postScriptName turns a character into a name that is safe inside CFF.
func postScriptName(name string, code int) string {
	if name == NotdefName {
		return name
	}
	if r := []rune(name); len(r) == 1 && r[0] < 128 && unicode.IsLetter(r[0]) {
		return name
	}
	return fmt.Sprintf("uni%04X", code)
}

type styleFlags struct {
	weight  os2.Weight
	regular bool
	bold    bool
	italic  bool
}

func parseStyle(style string) styleFlags {
	s := strings.ToLower(style)
	f := styleFlags{weight: os2.WeightNormal}
	switch {
	case strings.Contains(s, "bold"):
		f.weight, f.bold = os2.WeightBold, true
	case strings.Contains(s, "medium"):
		f.weight = os2.WeightMedium
	case strings.Contains(s, "light"):
		f.weight = os2.WeightLight
	}
	f.italic = strings.Contains(s, "italic") || strings.Contains(s, "oblique")
	f.regular = !f.bold && !f.italic
	return f
}

// SFNT builds the binary font model.
func (f *Font) SFNT() (*sfnt.Font, error) {
	upm := float64(f.UnitsPerEm)
	glyphs := make([]*cff.Glyph, len(f.Glyphs))
	format4 := cmap.Format4{}
	encoding := make([]glyph.ID, 256)
	seen := map[string]bool{}
	for i, g := range f.Glyphs {
		name := postScriptName(g.Name, g.Code)
		if seen[name] {
			return nil, fmt.Errorf("duplicate glyph name %q", name)
		}
		seen[name] = true
		cg := cff.NewGlyph(name, g.Advance)
		g.Path.Replay(&cffPen{g: cg})
		glyphs[i] = cg
		if i == 0 {
			continue
		}
		format4[uint16(g.Code)] = glyph.ID(i)
		if g.Code < len(encoding) {
			encoding[g.Code] = glyph.ID(i)
		}
	}

	cell := f.CellSize
	if cell <= 0 {
		cell = upm / 10
	}
	asc, desc, xh := funit.Int16(f.Ascender), funit.Int16(f.Descender), funit.Int16(f.XHeight)
	outlines := &cff.Outlines{
		Glyphs: glyphs,
		Private: []*type1.PrivateDict{
			{
				BlueValues: []funit.Int16{-10, 0, xh, xh + 10, asc, asc + 10},
				BlueScale:  0.039625,
				BlueShift:  7,
				BlueFuzz:   1,
				StdHW:      cell,
				StdVW:      cell,
			},
		},
		FDSelect: func(glyph.ID) int { return 0 },
		Encoding: encoding,
	}

	sub := format4.Encode(0)
	style := parseStyle(f.StyleName)
	return &sfnt.Font{
		FamilyName:         f.FamilyName,
		Ascent:             asc,
		Descent:            desc,
		LineGap:            0,
		CapHeight:          asc,
		XHeight:            xh,
		UnderlinePosition:  funit.Float64(desc) / 2,
		UnderlineThickness: funit.Float64(cell / 2),
		Outlines:           outlines,
		Width:              os2.WidthNormal,
		Weight:             style.weight,
		IsRegular:          style.regular,
		IsBold:             style.bold,
		IsItalic:           style.italic,
		PermUse:            os2.PermInstall,
		UnitsPerEm:         uint16(f.UnitsPerEm),
		FontMatrix:         matrix.Matrix{1 / upm, 0, 0, 1 / upm, 0, 0},
		CMapTable: cmap.Table{
			{PlatformID: 0, EncodingID: 3}: sub,
			{PlatformID: 3, EncodingID: 1}: sub,
		},
	}, nil
}

// WriteOTF encodes the font as an OpenType file with CFF outlines.
func (f *Font) WriteOTF(w io.Writer) error {
	sf, err := f.SFNT()
	if err != nil {
		return err
	}
	if _, err := sf.Write(w); err != nil {
		return fmt.Errorf("write font: %w", err)
	}
	return nil
}

// Bytes returns the encoded font.
func (f *Font) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.WriteOTF(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
