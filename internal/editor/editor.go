/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor owns the design document while it is being edited. Every
// mutation goes through the Editor, which serializes them with one mutex and
// bumps a revision counter the autosaver watches.
package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"epitax/internal/domain"
	"epitax/internal/grid"
	applog "epitax/internal/log"
	"epitax/internal/outline"
	"epitax/internal/undo"
)

// ErrUnknownGlyph is returned for characters the document has no record for.
var ErrUnknownGlyph = errors.New("unknown glyph")

// ClickResult tells the caller what a click did. Exactly one field is set.
type ClickResult struct {
	Pending *domain.CornerTriple // first click: the stored selection
	Shape   *domain.Shape        // second click: the appended shape
}

// Option configures an Editor.
type Option func(*Editor)

// WithClock replaces time.Now, used for shape ids and undo timestamps.
func WithClock(now func() time.Time) Option { return func(e *Editor) { e.now = now } }

// WithUndo sets the undo limits.
func WithUndo(cfg undo.Config) Option { return func(e *Editor) { e.history = undo.NewManager(cfg) } }

type Editor struct {
	mu      sync.Mutex
	doc     *domain.Document
	grid    domain.Grid
	pending map[string]domain.CornerTriple
	rev     uint64
	seq     uint64
	history *undo.Manager
	now     func() time.Time
	log     *slog.Logger
}

// New takes ownership of doc. A nil doc starts a fresh document.
func New(doc *domain.Document, g domain.Grid, opts ...Option) *Editor {
	if doc == nil {
		doc = domain.NewDocument(g)
	}
	e := &Editor{
		doc:     doc,
		grid:    g,
		pending: map[string]domain.CornerTriple{},
		now:     time.Now,
		log:     applog.WithComponent("editor"),
	}
	for _, o := range opts {
		o(e)
	}
	if e.history == nil {
		e.history = undo.NewManager(undo.Config{MaxPerKey: 100})
	}
	return e
}

func (e *Editor) Grid() domain.Grid { return e.grid }

// Click handles one click on a glyph's grid. The first click stores a corner
// triple as pending selection, the second stitches both into a shape.
func (e *Editor) Click(char string, col, row int, wx, wy float64) (ClickResult, error) {
	if err := grid.Check(e.grid, col, row, wx, wy); err != nil {
		return ClickResult{}, err
	}
	tri := grid.Resolve(e.grid.CellSize, col, row, wx, wy)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.doc.Glyph(char); !ok {
		return ClickResult{}, fmt.Errorf("%w: %q", ErrUnknownGlyph, char)
	}
	first, ok := e.pending[char]
	if !ok {
		e.pending[char] = tri
		e.log.Debug("selection started", slog.String("glyph", char), slog.Any("triple", tri))
		return ClickResult{Pending: &tri}, nil
	}
	delete(e.pending, char)
	e.seq++
	s := domain.Shape{
		ID:       fmt.Sprintf("shape-%d-%d", e.now().UnixMilli(), e.seq),
		Vertices: grid.Stitch(first, tri),
	}
	if err := e.appendLocked(char, s); err != nil {
		return ClickResult{}, err
	}
	return ClickResult{Shape: &s}, nil
}

// Cancel drops a pending selection. It reports whether there was one.
func (e *Editor) Cancel(char string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[char]
	delete(e.pending, char)
	return ok
}

// Pending returns the selection waiting for its second click.
func (e *Editor) Pending(char string) (domain.CornerTriple, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.pending[char]
	return t, ok
}

// AppendShape adds a finished shape to a glyph.
func (e *Editor) AppendShape(char string, s domain.Shape) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.appendLocked(char, s)
}

func (e *Editor) appendLocked(char string, s domain.Shape) error {
	g, ok := e.doc.Glyph(char)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGlyph, char)
	}
	e.recordLocked(char, g.Shapes)
	g.Shapes = append(g.Shapes, s)
	e.rev++
	e.log.Debug("shape appended", slog.String("glyph", char), slog.String("id", s.ID), slog.Int("shapes", len(g.Shapes)))
	return nil
}

// ClearShapes resets one glyph to an empty shape list.
func (e *Editor) ClearShapes(char string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.doc.Glyph(char)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGlyph, char)
	}
	e.recordLocked(char, g.Shapes)
	g.Shapes = []domain.Shape{}
	delete(e.pending, char)
	e.rev++
	return nil
}

// ResetAll starts over with a fresh document and no history.
func (e *Editor) ResetAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc = domain.NewDocument(e.grid)
	e.pending = map[string]domain.CornerTriple{}
	e.history.Reset()
	e.rev++
	e.log.Info("document reset")
}

// ReplaceDocument swaps in doc, e.g. after an import. History is dropped.
func (e *Editor) ReplaceDocument(doc *domain.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc = doc.Clone()
	e.pending = map[string]domain.CornerTriple{}
	e.history.Reset()
	e.rev++
}

// Snapshot returns a deep copy that is safe to use without the lock.
func (e *Editor) Snapshot() *domain.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// SnapshotRevision returns a copy together with the revision it belongs to.
func (e *Editor) SnapshotRevision() (*domain.Document, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone(), e.rev
}

// Glyph returns a copy of one record.
func (e *Editor) Glyph(char string) (domain.Glyph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.doc.Glyph(char)
	if !ok {
		return domain.Glyph{}, fmt.Errorf("%w: %q", ErrUnknownGlyph, char)
	}
	return g.Clone(), nil
}

// GlyphByCode is Glyph keyed by code-point.
func (e *Editor) GlyphByCode(code int) (domain.Glyph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.doc.GlyphByCode(code)
	if !ok {
		return domain.Glyph{}, fmt.Errorf("%w: U+%04X", ErrUnknownGlyph, code)
	}
	return g.Clone(), nil
}

// Outline merges the current shapes of one glyph.
func (e *Editor) Outline(char string, u outline.Unioner) (string, error) {
	g, err := e.Glyph(char)
	if err != nil {
		return "", err
	}
	return outline.Merge(g.Shapes, e.grid.BaselineY(), u), nil
}

// Revision increases with every mutation.
func (e *Editor) Revision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rev
}

// Undo reverts the last append or clear on a glyph. It reports false when
// there is nothing to undo.
func (e *Editor) Undo(char string) (bool, error) {
	return e.step(char, e.history.Undo)
}

// Redo reapplies what Undo reverted.
func (e *Editor) Redo(char string) (bool, error) {
	return e.step(char, e.history.Redo)
}

func (e *Editor) step(char string, move func(string, []byte) (undo.Snapshot, bool)) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.doc.Glyph(char)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownGlyph, char)
	}
	cur, err := json.Marshal(g.Shapes)
	if err != nil {
		return false, fmt.Errorf("encode shapes: %w", err)
	}
	s, ok := move(char, cur)
	if !ok {
		return false, nil
	}
	var shapes []domain.Shape
	if err := json.Unmarshal(s.Blob, &shapes); err != nil {
		return false, fmt.Errorf("decode history: %w", err)
	}
	if shapes == nil {
		shapes = []domain.Shape{}
	}
	g.Shapes = shapes
	delete(e.pending, char)
	e.rev++
	return true, nil
}

func (e *Editor) recordLocked(char string, shapes []domain.Shape) {
	b, err := json.Marshal(shapes)
	if err != nil {
		e.log.Warn("undo snapshot skipped", slog.String("glyph", char), slog.Any("err", err))
		return
	}
	e.history.Record(undo.Snapshot{Key: char, Blob: b, TS: e.now()})
}
