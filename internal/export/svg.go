/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"epitax/internal/domain"
	"epitax/internal/outline"
)

// SVGOptions controls GlyphSVG.
//
//nolint:revive // clarity is preferred
type SVGOptions struct {
	ShowGrid bool

	// Merged draws the union outline as one path instead of the raw shapes.
	Merged  bool
	Unioner outline.Unioner

	// Pending is an unfinished selection drawn as a polyline on top.
	Pending *domain.CornerTriple

	Fill          Color
	GridStroke    Color
	PendingStroke Color
}

// GlyphSVG writes one glyph as an SVG document in grid pixel space.
func GlyphSVG(w io.Writer, g domain.Grid, glyph domain.Glyph, opts SVGOptions) error {
	fill := opts.Fill.or(Black)
	gridCol := opts.GridStroke.or(GuideGrey)
	pendCol := opts.PendingStroke.or(Highlight)
	width, height := g.Width(), g.Height()

	var buf bytes.Buffer
	wf := func(format string, a ...any) { _, _ = fmt.Fprintf(&buf, format, a...) }

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%s\" height=\"%s\" viewBox=\"0 0 %s %s\">\n",
		num(width), num(height), num(width), num(height))
	wf("<title>%s</title>\n", escText(label(glyph)))

	if opts.ShowGrid {
		wf("<g class=\"grid\" fill=\"none\" stroke=\"%s\" stroke-width=\"1\">\n", svgColor(gridCol))
		for c := 0; c < g.Cols; c++ {
			for r := 0; r < g.Rows; r++ {
				wf("<rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\"/>\n",
					num(float64(c)*g.CellSize), num(float64(r)*g.CellSize), num(g.CellSize), num(g.CellSize))
			}
		}
		wf("<line class=\"baseline\" x1=\"0\" y1=\"%s\" x2=\"%s\" y2=\"%s\" stroke-width=\"2\"/>\n",
			num(g.BaselineY()), num(width), num(g.BaselineY()))
		wf("</g>\n")
	}

	if opts.Merged {
		u := opts.Unioner
		if u == nil {
			u = outline.Default
		}
		var p outline.Path
		if _, err := outline.Interpret(outline.Merge(glyph.Shapes, g.BaselineY(), u), &p); err != nil {
			return fmt.Errorf("glyph %q: %w", glyph.Character, err)
		}
		if p.Len() > 0 {
			pen := &svgPen{m: placement{Baseline: g.BaselineY(), Scale: 1}}
			p.Replay(pen)
			wf("<path class=\"outline\" fill=\"%s\" d=\"%s\"/>\n", svgColor(fill), escAttr(pen.String()))
		}
	} else if len(glyph.Shapes) > 0 {
		wf("<g class=\"shapes\" fill=\"%s\">\n", svgColor(fill))
		for _, s := range glyph.Shapes {
			wf("<polygon id=\"%s\" points=\"%s\"/>\n", escAttr(s.ID), points(s.Vertices[:]))
		}
		wf("</g>\n")
	}

	if opts.Pending != nil {
		wf("<polyline class=\"pending\" fill=\"none\" stroke=\"%s\" stroke-width=\"3\" points=\"%s\"/>\n",
			svgColor(pendCol), points(opts.Pending[:]))
	}
	wf("</svg>\n")

	_, err := w.Write(buf.Bytes())
	return err
}

// svgPen turns outline primitives back into SVG path data.
type svgPen struct {
	m  placement
	sb strings.Builder
}

func (p *svgPen) cmd(op string, xy ...float64) {
	if p.sb.Len() > 0 {
		p.sb.WriteByte(' ')
	}
	p.sb.WriteString(op)
	for i := 0; i+1 < len(xy); i += 2 {
		x, y := p.m.apply(xy[i], xy[i+1])
		p.sb.WriteByte(' ')
		p.sb.WriteString(num(x))
		p.sb.WriteByte(' ')
		p.sb.WriteString(num(y))
	}
}

func (p *svgPen) MoveTo(x, y float64)         { p.cmd("M", x, y) }
func (p *svgPen) LineTo(x, y float64)         { p.cmd("L", x, y) }
func (p *svgPen) QuadTo(cx, cy, x, y float64) { p.cmd("Q", cx, cy, x, y) }
func (p *svgPen) Close()                      { p.cmd("Z") }
func (p *svgPen) String() string              { return p.sb.String() }

func (p *svgPen) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.cmd("C", cx1, cy1, cx2, cy2, x, y)
}

func points(pts []domain.Point) string {
	parts := make([]string, len(pts))
	for i, pt := range pts {
		parts[i] = num(pt.X()) + "," + num(pt.Y())
	}
	return strings.Join(parts, " ")
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func svgColor(c Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func escAttr(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, "&quot;"...)
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
