/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"epitax/internal/domain"
	"epitax/internal/fontgen"
	"epitax/internal/outline"
)

// PDFOptions controls the specimen sheet. Units are points.
//
//nolint:revive // keep options grouped and explicit for clarity
type PDFOptions struct {
	Title      string // defaults to the family and style name
	Columns    int    // tiles per row, default 6
	ShowGuides bool   // draw tile borders and baselines
	Unioner    outline.Unioner
	Ink        Color
	GuideColor Color
}

const (
	a4W, a4H   = 595.28, 841.89
	pageMargin = 36.0
	titleSize  = 18.0
	labelSize  = 9.0
)

// SpecimenPDF writes a specimen sheet to path, creating parent directories.
func SpecimenPDF(path string, doc *domain.Document, g domain.Grid, opt PDFOptions) error {
	pdf, err := specimen(doc, g, opt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WriteSpecimenPDF is SpecimenPDF for an arbitrary writer.
func WriteSpecimenPDF(w io.Writer, doc *domain.Document, g domain.Grid, opt PDFOptions) error {
	pdf, err := specimen(doc, g, opt)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// specimen lays out one tile per drawn glyph, each filled from its merged
// outline with the nonzero rule and captioned below.
func specimen(doc *domain.Document, g domain.Grid, opt PDFOptions) (*gofpdf.Fpdf, error) {
	tiles, err := drawnTiles(doc, g, opt.Unioner)
	if err != nil {
		return nil, err
	}
	if len(tiles) == 0 {
		return nil, fontgen.ErrEmptyDesign
	}
	if opt.Columns <= 0 {
		opt.Columns = 6
	}
	title := opt.Title
	if title == "" {
		title = doc.FontSettings.FamilyName + " " + doc.FontSettings.StyleName
	}
	ink := opt.Ink.or(Black)
	guide := opt.GuideColor.or(GuideGrey)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: a4W, Ht: a4H},
	})
	pdf.SetTitle(title, true)
	pdf.SetAuthor("Epitax", false)
	pdf.SetAutoPageBreak(false, 0)

	tileW := (a4W - 2*pageMargin) / float64(opt.Columns)
	scale := (tileW - 8) / math.Max(g.Width(), g.Height())
	tileH := g.Height()*scale + 8 + labelSize*1.6
	top := pageMargin + titleSize*1.8

	newPage := func() float64 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", titleSize)
		setFillColor(pdf, ink)
		pdf.Text(pageMargin, pageMargin+titleSize, title)
		return top
	}
	y := newPage()
	for i, t := range tiles {
		col := i % opt.Columns
		if col == 0 && i > 0 {
			y += tileH
		}
		if y+tileH > a4H-pageMargin {
			y = newPage()
		}
		x := pageMargin + float64(col)*tileW
		ox := x + (tileW-g.Width()*scale)/2
		oy := y + 4

		if opt.ShowGuides {
			setDrawColor(pdf, guide)
			pdf.SetLineWidth(0.3)
			pdf.Rect(ox, oy, g.Width()*scale, g.Height()*scale, "D")
			by := oy + g.BaselineY()*scale
			pdf.Line(ox, by, ox+g.Width()*scale, by)
		}

		setFillColor(pdf, ink)
		t.Path.Replay(&pdfPen{pdf: pdf, m: placement{X: ox, Baseline: oy + g.BaselineY()*scale, Scale: scale}})
		pdf.DrawPath("F")

		pdf.SetFont("Helvetica", "", labelSize)
		caption := label(t.Glyph)
		pdf.Text(x+(tileW-pdf.GetStringWidth(caption))/2, oy+g.Height()*scale+labelSize*1.3, caption)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return pdf, nil
}

// pdfPen maps outline primitives onto gofpdf path operators.
type pdfPen struct {
	pdf *gofpdf.Fpdf
	m   placement
}

func (p *pdfPen) MoveTo(x, y float64) { p.pdf.MoveTo(p.m.apply(x, y)) }
func (p *pdfPen) LineTo(x, y float64) { p.pdf.LineTo(p.m.apply(x, y)) }
func (p *pdfPen) Close()              { p.pdf.ClosePath() }

func (p *pdfPen) QuadTo(cx, cy, x, y float64) {
	qx, qy := p.m.apply(cx, cy)
	ex, ey := p.m.apply(x, y)
	p.pdf.CurveTo(qx, qy, ex, ey)
}

func (p *pdfPen) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	ax, ay := p.m.apply(cx1, cy1)
	bx, by := p.m.apply(cx2, cy2)
	ex, ey := p.m.apply(x, y)
	p.pdf.CurveBezierCubicTo(ax, ay, bx, by, ex, ey)
}

func setDrawColor(pdf *gofpdf.Fpdf, c Color) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
}
