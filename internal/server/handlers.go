/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"epitax/internal/domain"
	"epitax/internal/editor"
	"epitax/internal/export"
	"epitax/internal/fontgen"
	"epitax/internal/grid"
	"epitax/internal/storage"
	"epitax/internal/version"
)

const maxBody = 32 << 20

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})

	s.mux.HandleFunc("GET /api/document", s.handleGetDocument)
	s.mux.HandleFunc("PUT /api/document", s.handlePutDocument)
	s.mux.HandleFunc("POST /api/reset", s.handleResetAll)
	s.mux.HandleFunc("GET /api/glyphs", s.handleListGlyphs)
	s.mux.HandleFunc("POST /api/glyphs/{code}/click", s.withGlyph(s.handleClick))
	s.mux.HandleFunc("POST /api/glyphs/{code}/cancel", s.withGlyph(s.handleCancel))
	s.mux.HandleFunc("POST /api/glyphs/{code}/reset", s.withGlyph(s.handleResetGlyph))
	s.mux.HandleFunc("POST /api/glyphs/{code}/undo", s.withGlyph(s.handleStep(s.ed.Undo)))
	s.mux.HandleFunc("POST /api/glyphs/{code}/redo", s.withGlyph(s.handleStep(s.ed.Redo)))
	s.mux.HandleFunc("GET /api/glyphs/{code}/outline", s.withGlyph(s.handleOutline))
	s.mux.HandleFunc("GET /api/glyphs/{code}/svg", s.withGlyph(s.handleSVG))
	s.mux.HandleFunc("GET /api/font", s.handleFont)
	s.mux.HandleFunc("GET /api/overview", s.handleOverview)
	s.mux.HandleFunc("GET /api/preview", s.handlePreview)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.repo != nil {
		if p, ok := s.repo.Store().(interface{ Ping(context.Context) error }); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("store not ready"))
				return
			}
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	data, err := storage.Encode(s.ed.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handlePutDocument replaces the whole document. The body goes through the
// same migration and validation as a file import.
func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := storage.DecodeImport(http.MaxBytesReader(w, r.Body, maxBody), s.ed.Grid())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.ed.ReplaceDocument(doc)
	s.log.Info("document replaced", slog.Int("shapes", doc.ShapeCount()))
	s.handleGetDocument(w, r)
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	s.ed.ResetAll()
	w.WriteHeader(http.StatusNoContent)
}

// GlyphSummary is one entry of GET /api/glyphs.
type GlyphSummary struct {
	Character string `json:"character"`
	Unicode   int    `json:"unicode"`
	Shapes    int    `json:"shapes"`
	Pending   bool   `json:"pending"`
}

func (s *Server) handleListGlyphs(w http.ResponseWriter, r *http.Request) {
	doc := s.ed.Snapshot()
	out := make([]GlyphSummary, 0, len(doc.Glyphs))
	for _, g := range doc.Glyphs {
		_, pending := s.ed.Pending(g.Character)
		out = append(out, GlyphSummary{Character: g.Character, Unicode: g.Unicode, Shapes: len(g.Shapes), Pending: pending})
	}
	writeJSON(w, http.StatusOK, out)
}

type glyphHandler func(w http.ResponseWriter, r *http.Request, g domain.Glyph)

// withGlyph resolves the {code} path value. Codes are decimal or prefixed
// with 0x or U+.
func (s *Server) withGlyph(next glyphHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := parseCode(r.PathValue("code"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		g, err := s.ed.GlyphByCode(code)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		next(w, r, g)
	}
}

func parseCode(raw string) (int, error) {
	v := raw
	if rest, ok := strings.CutPrefix(strings.ToUpper(v), "U+"); ok {
		v = "0x" + rest
	}
	n, err := strconv.ParseInt(v, 0, 32)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid code-point %q", raw)
	}
	return int(n), nil
}

// ClickRequest is a click either in cell coordinates (col, row and the
// offset x, y inside the cell) or, without col and row, anywhere on the grid.
type ClickRequest struct {
	Col *int    `json:"col,omitempty"`
	Row *int    `json:"row,omitempty"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// ClickResponse carries the pending selection after a first click, or the
// new shape and the glyph's merged outline after a second one.
type ClickResponse struct {
	Pending *domain.CornerTriple `json:"pending,omitempty"`
	Shape   *domain.Shape        `json:"shape,omitempty"`
	Outline *string              `json:"outline,omitempty"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request, g domain.Glyph) {
	var req ClickRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("click body: %w", err))
		return
	}
	col, row, wx, wy := 0, 0, req.X, req.Y
	if req.Col != nil && req.Row != nil {
		col, row = *req.Col, *req.Row
	} else {
		var err error
		if col, row, wx, wy, err = grid.Locate(s.ed.Grid(), req.X, req.Y); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}
	res, err := s.ed.Click(g.Character, col, row, wx, wy)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out := ClickResponse{Pending: res.Pending, Shape: res.Shape}
	if res.Shape != nil {
		data, err := s.ed.Outline(g.Character, s.u)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		out.Outline = &data
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, g domain.Glyph) {
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": s.ed.Cancel(g.Character)})
}

func (s *Server) handleResetGlyph(w http.ResponseWriter, r *http.Request, g domain.Glyph) {
	if err := s.ed.ClearShapes(g.Character); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStep(move func(string) (bool, error)) glyphHandler {
	return func(w http.ResponseWriter, r *http.Request, g domain.Glyph) {
		changed, err := move(g.Character)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		cur, _ := s.ed.Glyph(g.Character)
		writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "shapes": len(cur.Shapes)})
	}
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request, g domain.Glyph) {
	data, err := s.ed.Outline(g.Character, s.u)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"character": g.Character,
		"unicode":   g.Unicode,
		"outline":   data,
	})
}

// handleSVG renders the glyph. Query flags: grid=1 adds the cell grid,
// merged=1 draws the union outline.
func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request, g domain.Glyph) {
	q := r.URL.Query()
	opts := export.SVGOptions{
		ShowGrid: truthy(q.Get("grid")),
		Merged:   truthy(q.Get("merged")),
		Unioner:  s.u,
	}
	if p, ok := s.ed.Pending(g.Character); ok {
		opts.Pending = &p
	}
	var buf bytes.Buffer
	if err := export.GlyphSVG(&buf, s.ed.Grid(), g, opts); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleFont(w http.ResponseWriter, r *http.Request) {
	data, err := s.fontBytes()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "font/otf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fontgen.DefaultFileName(s.now())))
	_, _ = w.Write(data)
}

func (s *Server) fontBytes() ([]byte, error) {
	f, err := fontgen.Assemble(s.ed.Snapshot(), s.ed.Grid(), s.u)
	if err != nil {
		return nil, err
	}
	return f.Bytes()
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	opts := export.PNGOptions{Labels: truthy(r.URL.Query().Get("labels")), Unioner: s.u}
	if err := export.OverviewPNG(&buf, s.ed.Snapshot(), s.ed.Grid(), opts); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// handlePreview typesets ?text= with the font built from the current design.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		text = "ABC abc 123"
	}
	data, err := s.fontBytes()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	var buf bytes.Buffer
	if err := export.PreviewPNG(&buf, data, text, export.PreviewOptions{}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrUnknownGlyph):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrOutOfGrid), errors.Is(err, export.ErrNoText):
		return http.StatusBadRequest
	case errors.Is(err, fontgen.ErrEmptyDesign):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
