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
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"epitax/internal/domain"
	"epitax/internal/fontgen"
	"epitax/internal/outline"
)

// PNGOptions controls OverviewPNG.
//
//nolint:revive // clarity is preferred
type PNGOptions struct {
	TileSize   int // pixels per tile edge, default 64
	Columns    int // tiles per row, default 10
	Padding    int // default 4
	Labels     bool
	Unioner    outline.Unioner
	Ink        Color
	Background Color
	TileBorder Color
}

const labelHeight = 16

// OverviewPNG renders a thumbnail sheet of every drawn glyph. It fails with
// fontgen.ErrEmptyDesign when nothing has been drawn.
func OverviewPNG(w io.Writer, doc *domain.Document, g domain.Grid, opt PNGOptions) error {
	if opt.TileSize <= 0 {
		opt.TileSize = 64
	}
	if opt.Columns <= 0 {
		opt.Columns = 10
	}
	if opt.Padding <= 0 || 2*opt.Padding >= opt.TileSize {
		opt.Padding = 4
	}
	tiles, err := drawnTiles(doc, g, opt.Unioner)
	if err != nil {
		return err
	}
	if len(tiles) == 0 {
		return fontgen.ErrEmptyDesign
	}

	cols := min(opt.Columns, len(tiles))
	rows := (len(tiles) + cols - 1) / cols
	cellH := opt.TileSize
	if opt.Labels {
		cellH += labelHeight
	}
	img := image.NewRGBA(image.Rect(0, 0, cols*opt.TileSize, rows*cellH))
	draw.Draw(img, img.Bounds(), image.NewUniform(opt.Background.or(White).rgba()), image.Point{}, draw.Src)

	ink := image.NewUniform(opt.Ink.or(Black).rgba())
	border := opt.TileBorder.or(GuideGrey).rgba()
	inner := float64(opt.TileSize - 2*opt.Padding)
	scale := inner / math.Max(g.Width(), g.Height())
	// the grid box is centered inside the tile
	offX := float64(opt.Padding) + (inner-g.Width()*scale)/2
	offY := float64(opt.Padding) + (inner-g.Height()*scale)/2

	r := vector.NewRasterizer(opt.TileSize, opt.TileSize)
	for i, t := range tiles {
		x0, y0 := (i%cols)*opt.TileSize, (i/cols)*cellH
		strokeRect(img, x0, y0, x0+opt.TileSize-1, y0+opt.TileSize-1, border)

		r.Reset(opt.TileSize, opt.TileSize)
		t.Path.Replay(&rasterPen{r: r, m: placement{X: offX, Baseline: offY + g.BaselineY()*scale, Scale: scale}})
		tileRect := image.Rect(x0, y0, x0+opt.TileSize, y0+opt.TileSize)
		r.Draw(img, tileRect, ink, image.Point{})

		if opt.Labels {
			d := &font.Drawer{
				Dst:  img,
				Src:  ink,
				Face: basicfont.Face7x13,
				Dot:  fixed.P(x0+opt.Padding, y0+opt.TileSize+labelHeight-4),
			}
			d.DrawString(label(t.Glyph))
		}
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// rasterPen feeds outline primitives to an x/image rasterizer.
type rasterPen struct {
	r *vector.Rasterizer
	m placement
}

func (p *rasterPen) pt(x, y float64) (float32, float32) {
	tx, ty := p.m.apply(x, y)
	return float32(tx), float32(ty)
}

func (p *rasterPen) MoveTo(x, y float64) { p.r.MoveTo(p.pt(x, y)) }
func (p *rasterPen) LineTo(x, y float64) { p.r.LineTo(p.pt(x, y)) }
func (p *rasterPen) Close()              { p.r.ClosePath() }

func (p *rasterPen) QuadTo(cx, cy, x, y float64) {
	bx, by := p.pt(cx, cy)
	ex, ey := p.pt(x, y)
	p.r.QuadTo(bx, by, ex, ey)
}

func (p *rasterPen) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	bx, by := p.pt(cx1, cy1)
	cx, cy := p.pt(cx2, cy2)
	ex, ey := p.pt(x, y)
	p.r.CubeTo(bx, by, cx, cy, ex, ey)
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}
