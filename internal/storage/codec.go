/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"epitax/internal/domain"
)

// ErrMalformed marks a blob that cannot be read as a design document.
var ErrMalformed = errors.New("malformed document")

//go:embed schema/document.schema.json
var documentSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchema))
	})
	return schema, schemaErr
}

// Validate checks a serialized current-version document against the schema.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
}

// Encode serializes doc in its persisted form. Absent shape lists are written
// as empty arrays.
func Encode(doc *domain.Document) ([]byte, error) {
	out := *doc
	out.SchemaVersion = domain.SchemaVersion
	out.Glyphs = make([]domain.Glyph, len(doc.Glyphs))
	copy(out.Glyphs, doc.Glyphs)
	for i := range out.Glyphs {
		if out.Glyphs[i].Shapes == nil {
			out.Glyphs[i].Shapes = []domain.Shape{}
		}
	}
	return json.Marshal(&out)
}

// Decode reads a persisted document of any known schema version. migrated
// reports whether the input was in an older layout and got upgraded.
func Decode(data []byte, g domain.Grid) (doc *domain.Document, migrated bool, err error) {
	var probe struct {
		SchemaVersion *int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case probe.SchemaVersion == nil || *probe.SchemaVersion == 1:
		doc, err = upgradeV1(data, g)
		if err != nil {
			return nil, false, err
		}
		canonical, err := Encode(doc)
		if err != nil {
			return nil, false, err
		}
		if err := Validate(canonical); err != nil {
			return nil, false, err
		}
		if err := checkGlyphKeys(doc.Glyphs); err != nil {
			return nil, false, err
		}
		return doc, true, nil
	case *probe.SchemaVersion == domain.SchemaVersion:
		if err := Validate(data); err != nil {
			return nil, false, err
		}
		doc = &domain.Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := checkGlyphKeys(doc.Glyphs); err != nil {
			return nil, false, err
		}
		return doc, false, nil
	default:
		return nil, false, fmt.Errorf("%w: unsupported schema version %d", ErrMalformed, *probe.SchemaVersion)
	}
}

// checkGlyphKeys enforces that every record holds exactly one character and
// that no character or code-point appears twice.
func checkGlyphKeys(glyphs []domain.Glyph) error {
	chars := make(map[string]struct{}, len(glyphs))
	codes := make(map[int]string, len(glyphs))
	for _, gl := range glyphs {
		if utf8.RuneCountInString(gl.Character) != 1 {
			return fmt.Errorf("%w: glyph %q is not a single character", ErrMalformed, gl.Character)
		}
		if _, dup := chars[gl.Character]; dup {
			return fmt.Errorf("%w: glyph %q appears twice", ErrMalformed, gl.Character)
		}
		chars[gl.Character] = struct{}{}
		if other, dup := codes[gl.Unicode]; dup {
			return fmt.Errorf("%w: glyphs %q and %q share code-point U+%04X", ErrMalformed, other, gl.Character, gl.Unicode)
		}
		codes[gl.Unicode] = gl.Character
	}
	return nil
}

// legacyPoint accepts a vertex as {"x":..,"y":..} or as [x, y].
type legacyPoint domain.Point

func (p *legacyPoint) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var xy []float64
		if err := json.Unmarshal(b, &xy); err != nil {
			return err
		}
		if len(xy) != 2 {
			return fmt.Errorf("vertex has %d coordinates", len(xy))
		}
		*p = legacyPoint{xy[0], xy[1]}
		return nil
	}
	var obj struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.X == nil || obj.Y == nil {
		return errors.New("vertex lacks x or y")
	}
	*p = legacyPoint{*obj.X, *obj.Y}
	return nil
}

type legacyDocument struct {
	FontSettings domain.FontSettings `json:"fontSettings"`
	Glyphs       []struct {
		Character string `json:"character"`
		Unicode   int    `json:"unicode"`
		Shapes    []struct {
			ID       string        `json:"id"`
			Vertices []legacyPoint `json:"vertices"`
		} `json:"shapes"`
	} `json:"glyphs"`
}

// upgradeV1 converts the first layout: no schemaVersion, object vertices and
// no advance width.
func upgradeV1(data []byte, g domain.Grid) (*domain.Document, error) {
	var old legacyDocument
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	fresh := domain.NewDocument(g).FontSettings
	fs := old.FontSettings
	if fs.FamilyName == "" {
		fs.FamilyName = fresh.FamilyName
	}
	if fs.UnitsPerEm == 0 {
		fs.UnitsPerEm = fresh.UnitsPerEm
	}
	if fs.Ascender == 0 && fs.Descender == 0 {
		fs.Ascender, fs.Descender = fresh.Ascender, fresh.Descender
	}
	if fs.AdvanceWidth == 0 {
		fs.AdvanceWidth = fresh.AdvanceWidth
	}

	doc := &domain.Document{SchemaVersion: domain.SchemaVersion, FontSettings: fs}
	doc.Glyphs = make([]domain.Glyph, 0, len(old.Glyphs))
	for _, og := range old.Glyphs {
		gl := domain.Glyph{Character: og.Character, Unicode: og.Unicode, Shapes: make([]domain.Shape, 0, len(og.Shapes))}
		for _, sh := range og.Shapes {
			if len(sh.Vertices) != 6 {
				return nil, fmt.Errorf("%w: glyph %q shape %q has %d vertices", ErrMalformed, og.Character, sh.ID, len(sh.Vertices))
			}
			s := domain.Shape{ID: sh.ID}
			for i, v := range sh.Vertices {
				s.Vertices[i] = domain.Point(v)
			}
			gl.Shapes = append(gl.Shapes, s)
		}
		doc.Glyphs = append(doc.Glyphs, gl)
	}
	return doc, nil
}
