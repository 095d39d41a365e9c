/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package outline

import (
	"math"

	"seehuhn.de/go/geom/rect"
)

// Builder receives drawing primitives in absolute coordinates.
type Builder interface {
	MoveTo(x, y float64)
	LineTo(x, y float64)
	QuadTo(cx, cy, x, y float64)
	CubicTo(cx1, cy1, cx2, cy2, x, y float64)
	Close()
}

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	QuadTo  // quadratic bezier (cx, cy, x, y)
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

func (op PathOp) String() string {
	switch op {
	case MoveTo:
		return "moveTo"
	case LineTo:
		return "lineTo"
	case QuadTo:
		return "quadTo"
	case CubicTo:
		return "curveTo"
	case Close:
		return "closePath"
	}
	return "unknown"
}

type PathCmd struct {
	Op   PathOp
	Data [6]float64 // enough for cubic; unused slots are zero
}

// Path records primitives. It implements Builder.
type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float64{x, y}})
}
func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: QuadTo, Data: [6]float64{cx, cy, x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float64{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

func (p *Path) Len() int { return len(p.Cmds) }

// Replay sends the recorded primitives to another builder.
func (p *Path) Replay(b Builder) {
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case MoveTo:
			b.MoveTo(d[0], d[1])
		case LineTo:
			b.LineTo(d[0], d[1])
		case QuadTo:
			b.QuadTo(d[0], d[1], d[2], d[3])
		case CubicTo:
			b.CubicTo(d[0], d[1], d[2], d[3], d[4], d[5])
		case Close:
			b.Close()
		}
	}
}

// Bounds returns the box around all end and control points. Control points
// make it an over-approximation for curves.
func (p *Path) Bounds() rect.Rect {
	box := rect.Rect{LLx: math.Inf(1), LLy: math.Inf(1), URx: math.Inf(-1), URy: math.Inf(-1)}
	add := func(x, y float64) {
		box.LLx, box.LLy = math.Min(box.LLx, x), math.Min(box.LLy, y)
		box.URx, box.URy = math.Max(box.URx, x), math.Max(box.URy, y)
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo, LineTo:
			add(c.Data[0], c.Data[1])
		case QuadTo:
			add(c.Data[0], c.Data[1])
			add(c.Data[2], c.Data[3])
		case CubicTo:
			add(c.Data[0], c.Data[1])
			add(c.Data[2], c.Data[3])
			add(c.Data[4], c.Data[5])
		}
	}
	if box.LLx > box.URx {
		return rect.Rect{}
	}
	return box
}

// curveSteps is how finely curves are flattened for Area.
const curveSteps = 32

// Area is the signed area enclosed by the subpaths, every subpath closed
// implicitly. Curves are flattened.
func (p *Path) Area() float64 {
	var total float64
	var sx, sy, cx, cy float64
	open := false
	edge := func(x, y float64) {
		if !open {
			sx, sy, open = cx, cy, true
		}
		total += cx*y - x*cy
		cx, cy = x, y
	}
	closeSub := func() {
		if open {
			edge(sx, sy)
			open = false
		}
	}
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case MoveTo:
			closeSub()
			sx, sy, cx, cy = d[0], d[1], d[0], d[1]
			open = true
		case LineTo:
			edge(d[0], d[1])
		case QuadTo:
			x0, y0 := cx, cy
			for i := 1; i <= curveSteps; i++ {
				t := float64(i) / curveSteps
				u := 1 - t
				edge(u*u*x0+2*u*t*d[0]+t*t*d[2], u*u*y0+2*u*t*d[1]+t*t*d[3])
			}
		case CubicTo:
			x0, y0 := cx, cy
			for i := 1; i <= curveSteps; i++ {
				t := float64(i) / curveSteps
				u := 1 - t
				a, b, e, f := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
				edge(a*x0+b*d[0]+e*d[2]+f*d[4], a*y0+b*d[1]+e*d[3]+f*d[5])
			}
		case Close:
			closeSub()
		}
	}
	closeSub()
	return total / 2
}
