/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"epitax/internal/domain"
)

const legacyState = `{
  "fontSettings": {"familyName": "Old", "styleName": "Regular", "unitsPerEm": 1000, "ascender": 600, "descender": -200},
  "glyphs": [
    {"character": "A", "unicode": 65, "shapes": [
      {"id": "shape-1", "vertices": [
        {"x": 100, "y": 0}, {"x": 0, "y": 0}, {"x": 0, "y": 100},
        {"x": 0, "y": 100}, {"x": 100, "y": 100}, [100, 0]
      ]}
    ]},
    {"character": "B", "unicode": 66, "shapes": []}
  ]
}`

func TestFreshDocumentMatchesSchema(t *testing.T) {
	b, err := Encode(domain.NewDocument(domain.DefaultGrid()))
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(b); err != nil {
		t.Fatalf("fresh document does not conform: %v", err)
	}
}

func TestEncodeWritesEmptyShapeLists(t *testing.T) {
	doc := &domain.Document{FontSettings: domain.NewDocument(domain.DefaultGrid()).FontSettings,
		Glyphs: []domain.Glyph{{Character: "A", Unicode: 65}}}
	b, err := Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"shapes":[]`) || !strings.Contains(string(b), `"schemaVersion":2`) {
		t.Fatalf("unexpected encoding %s", b)
	}
	if doc.Glyphs[0].Shapes != nil {
		t.Fatalf("Encode modified its input")
	}
}

func TestDecodeRejects(t *testing.T) {
	fresh, _ := Encode(domain.NewDocument(domain.DefaultGrid()))
	fiveVertices := strings.Replace(legacyState, `, [100, 0]`, ``, 1)
	badV2 := strings.Replace(string(fresh), `"shapes":[]`, `"shapes":[{"id":"s","vertices":[[0,0],[1,1]]}]`, 1)
	cases := map[string]string{
		"not json":        `{"glyphs": [`,
		"future version":  `{"schemaVersion": 9, "glyphs": []}`,
		"five vertices":   fiveVertices,
		"v2 short shape":  badV2,
		"vertex lacks y":  strings.Replace(legacyState, `{"x": 100, "y": 0}`, `{"x": 100}`, 1),
		"no glyphs in v2": `{"schemaVersion": 2, "fontSettings": {"familyName":"x","styleName":"","unitsPerEm":1000,"ascender":600,"descender":-200}, "glyphs": []}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Decode([]byte(in), domain.DefaultGrid()); !errors.Is(err, ErrMalformed) {
				t.Fatalf("want ErrMalformed, got %v", err)
			}
		})
	}
}

func v2WithGlyphs(glyphs ...string) string {
	return `{"schemaVersion": 2, "fontSettings": {"familyName":"x","styleName":"","unitsPerEm":1000,"ascender":600,"descender":-200,"advanceWidth":600}, "glyphs": [` +
		strings.Join(glyphs, ",") + `]}`
}

func TestDecodeRejectsAmbiguousGlyphKeys(t *testing.T) {
	a := `{"character":"A","unicode":65,"shapes":[]}`
	cases := []struct {
		name string
		in   string
	}{
		{"duplicate character", v2WithGlyphs(a, a)},
		{"shared code-point", v2WithGlyphs(a, `{"character":"B","unicode":65,"shapes":[]}`)},
		{"two runes", v2WithGlyphs(`{"character":"AB","unicode":65,"shapes":[]}`)},
		{"empty character", v2WithGlyphs(`{"character":"","unicode":65,"shapes":[]}`)},
		{"legacy duplicate", strings.Replace(legacyState, `"character": "B"`, `"character": "A"`, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Decode([]byte(tc.in), domain.DefaultGrid()); !errors.Is(err, ErrMalformed) {
				t.Fatalf("want ErrMalformed, got %v", err)
			}
		})
	}
	if _, _, err := Decode([]byte(v2WithGlyphs(a, `{"character":"é","unicode":233,"shapes":[]}`)), domain.DefaultGrid()); err != nil {
		t.Fatalf("distinct glyphs rejected: %v", err)
	}
}

func TestLoadRejectsDuplicateCharacters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Save(ctx, StateKey, v2WithGlyphs(
		`{"character":"A","unicode":65,"shapes":[]}`, `{"character":"A","unicode":65,"shapes":[]}`))
	repo := NewRepository(store, domain.DefaultGrid())

	res, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("malformed data is not a load error: %v", err)
	}
	if res.Source != SourceMalformed || !errors.Is(res.Problem, ErrMalformed) {
		t.Fatalf("source %s problem %v", res.Source, res.Problem)
	}
	if len(res.Doc.Glyphs) != 94 {
		t.Fatalf("want a fresh document, got %d glyphs", len(res.Doc.Glyphs))
	}
}

func TestLoadMigratesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Save(ctx, StateKey, legacyState)
	repo := NewRepository(store, domain.DefaultGrid())

	res, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Source != SourceMigrated || res.Problem != nil {
		t.Fatalf("source %s problem %v", res.Source, res.Problem)
	}
	a, _ := res.Doc.Glyph("A")
	want := [6]domain.Point{{100, 0}, {0, 0}, {0, 100}, {0, 100}, {100, 100}, {100, 0}}
	if diff := cmp.Diff(want, a.Shapes[0].Vertices); diff != "" {
		t.Fatalf("vertices (-want +got):\n%s", diff)
	}
	if res.Doc.FontSettings.FamilyName != "Old" || res.Doc.FontSettings.AdvanceWidth != 600 {
		t.Fatalf("font settings %+v", res.Doc.FontSettings)
	}

	// the rewritten form is already in the store
	blob, _, _ := store.Load(ctx, StateKey)
	var persisted map[string]any
	if err := json.Unmarshal([]byte(blob), &persisted); err != nil {
		t.Fatal(err)
	}
	if persisted["schemaVersion"] != float64(2) {
		t.Fatalf("stored blob not migrated: %s", blob)
	}
	if strings.Contains(blob, `"x"`) {
		t.Fatalf("stored blob still has object vertices")
	}

	res, err = repo.Load(ctx)
	if err != nil || res.Source != SourceStored {
		t.Fatalf("second load: %s %v", res.Source, err)
	}
}

func TestLoadFreshAndMalformed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store, domain.DefaultGrid())

	res, err := repo.Load(ctx)
	if err != nil || res.Source != SourceFresh || len(res.Doc.Glyphs) != 94 {
		t.Fatalf("fresh load: %s %v", res.Source, err)
	}
	if store.Saves() != 0 {
		t.Fatalf("a fresh load must not write")
	}

	_ = store.Save(ctx, StateKey, "garbage")
	res, err = repo.Load(ctx)
	if err != nil {
		t.Fatalf("malformed data is not a load error: %v", err)
	}
	if res.Source != SourceMalformed || !errors.Is(res.Problem, ErrMalformed) {
		t.Fatalf("source %s problem %v", res.Source, res.Problem)
	}
	if res.Doc.ShapeCount() != 0 {
		t.Fatalf("fallback document should be fresh")
	}
	if blob, _, _ := store.Load(ctx, StateKey); blob != "garbage" {
		t.Fatalf("malformed blob was overwritten: %q", blob)
	}
}

func TestSaveAndClear(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestSQLite(t), domain.DefaultGrid())
	doc := domain.NewDocument(domain.DefaultGrid())
	g, _ := doc.Glyph("Q")
	g.Shapes = append(g.Shapes, domain.Shape{ID: "s", Vertices: [6]domain.Point{{0, 0}, {1, 0}, {1, 1}, {1, 1}, {0, 1}, {0, 0}}})
	if err := repo.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveKey(ctx, CrashKey, doc); err != nil {
		t.Fatal(err)
	}
	res, err := repo.Load(ctx)
	if err != nil || res.Source != SourceStored {
		t.Fatalf("Load: %s %v", res.Source, err)
	}
	if diff := cmp.Diff(doc, res.Doc); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
	if err := repo.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if res, _ := repo.Load(ctx); res.Source != SourceFresh {
		t.Fatalf("after Clear source = %s", res.Source)
	}
	if _, ok, _ := repo.Store().Load(ctx, CrashKey); !ok {
		t.Fatalf("Clear must not touch the crash copy")
	}
}
