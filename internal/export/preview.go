/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrNoText is returned when PreviewPNG gets an empty sample.
var ErrNoText = errors.New("preview text is empty")

// PreviewOptions controls PreviewPNG.
type PreviewOptions struct {
	Size       float64 // pixels per em, default 64
	Margin     int     // default 16
	Ink        Color
	Background Color
}

// PreviewPNG typesets text with the given OpenType font bytes on a single
// line and writes the result as PNG. Characters missing from the font are
// drawn as .notdef.
func PreviewPNG(w io.Writer, fontBytes []byte, text string, opt PreviewOptions) error {
	if text == "" {
		return ErrNoText
	}
	if opt.Size <= 0 {
		opt.Size = 64
	}
	if opt.Margin <= 0 {
		opt.Margin = 16
	}
	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: opt.Size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return fmt.Errorf("font face: %w", err)
	}
	defer func() { _ = face.Close() }()

	m := face.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	if ascent+descent <= 0 {
		ascent = int(opt.Size)
	}
	advance := font.MeasureString(face, text).Ceil()
	width := max(advance, 1) + 2*opt.Margin
	height := ascent + descent + 2*opt.Margin

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(opt.Background.or(White).rgba()), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(opt.Ink.or(Black).rgba()),
		Face: face,
		Dot:  fixed.P(opt.Margin, opt.Margin+ascent),
	}
	d.DrawString(text)

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
