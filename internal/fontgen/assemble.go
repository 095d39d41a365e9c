/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package fontgen assembles drawn glyphs into a font and encodes it as an
// OpenType (CFF) binary.
package fontgen

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"epitax/internal/domain"
	applog "epitax/internal/log"
	"epitax/internal/outline"
)

// ErrEmptyDesign means no glyph has been drawn, so only .notdef would be exported.
var ErrEmptyDesign = errors.New("no characters have been drawn")

// NotdefName is the mandatory first glyph.
const NotdefName = ".notdef"

// Glyph is one entry of an assembled font. Path is in font units, Y up.
type Glyph struct {
	Name    string
	Code    int
	Advance float64
	Path    outline.Path
}

// Font is the assembled, encoder-independent font.
type Font struct {
	FamilyName string
	StyleName  string
	UnitsPerEm int
	Ascender   int
	Descender  int
	XHeight    int
	CellSize   float64
	Glyphs     []Glyph
}

// ValidCode reports whether a record can be mapped in the font's cmap.
func ValidCode(char string, code int) bool {
	return char != "" && code > 0 && code <= 0xFFFF
}

// Assemble merges and interprets every glyph record of doc. Records without
// outline or with an unusable code-point are left out. The result always
// starts with an empty .notdef glyph.
func Assemble(doc *domain.Document, g domain.Grid, u outline.Unioner) (*Font, error) {
	l := applog.WithOperation(applog.WithComponent("fontgen"), "assemble")
	fs := doc.FontSettings
	advance := float64(fs.AdvanceWidth)
	if advance <= 0 {
		advance = g.Width()
	}

	f := &Font{
		FamilyName: fs.FamilyName,
		StyleName:  fs.StyleName,
		UnitsPerEm: fs.UnitsPerEm,
		Ascender:   fs.Ascender,
		Descender:  fs.Descender,
		XHeight:    g.XHeight(),
		CellSize:   g.CellSize,
		Glyphs:     []Glyph{{Name: NotdefName, Code: 0, Advance: advance}},
	}
	if f.UnitsPerEm <= 0 {
		f.UnitsPerEm = domain.DefaultUnitsPerEm
	}

	skipped := 0
	for _, rec := range doc.Glyphs {
		data := outline.Merge(rec.Shapes, g.BaselineY(), u)
		if data == "" {
			continue
		}
		var p outline.Path
		if _, err := outline.Interpret(data, &p); err != nil {
			return nil, fmt.Errorf("glyph %q: %w", rec.Character, err)
		}
		if p.Len() == 0 {
			continue
		}
		if !ValidCode(rec.Character, rec.Unicode) {
			skipped++
			l.Warn("glyph skipped, code-point not encodable",
				slog.String("char", rec.Character), slog.Int("code", rec.Unicode))
			continue
		}
		f.Glyphs = append(f.Glyphs, Glyph{Name: rec.Character, Code: rec.Unicode, Advance: advance, Path: p})
	}
	if len(f.Glyphs) <= 1 {
		return nil, ErrEmptyDesign
	}
	l.Debug("font assembled", slog.Int("glyphs", len(f.Glyphs)), slog.Int("skipped", skipped))
	return f, nil
}

// UniqueID is the short timestamp used to tell exported font files apart.
func UniqueID(t time.Time) string { return t.Format("060102-1504") }

// DefaultFileName is the suggested file name for a font exported at t.
func DefaultFileName(t time.Time) string { return "MMN-Epitax-" + UniqueID(t) + ".otf" }
