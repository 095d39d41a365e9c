/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package clip computes boolean unions of straight-edged regions.
//
// A Region is a set of closed contours filled by the nonzero winding rule.
// Union splits every edge at every intersection, keeps the split segments that
// separate inside from outside, and chains them back into contours. Output
// contours run counter-clockwise around filled area and clockwise around holes
// (in a Y-up frame) and are normalized, so equal regions serialize equally no
// matter in which order their parts were added.
package clip

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"seehuhn.de/go/geom/vec"
)

// Polygon is one closed contour. The closing edge from the last back to the
// first vertex is implied.
type Polygon []vec.Vec2

// Region is a set of contours filled by the nonzero rule.
type Region []Polygon

// Area is the signed shoelace area; positive for counter-clockwise contours.
func (p Polygon) Area() float64 {
	var a float64
	for i := range p {
		a += cross(p[i], p[(i+1)%len(p)])
	}
	return a / 2
}

// Area sums the signed contour areas. For Union output this is the filled area.
func (r Region) Area() float64 {
	var a float64
	for _, p := range r {
		a += p.Area()
	}
	return a
}

// Contains reports whether p is inside r under the nonzero rule.
func (r Region) Contains(p vec.Vec2) bool { return winding(r, p) != 0 }

// Overlay is the in-process union engine. The zero value is ready to use.
type Overlay struct{}

const (
	eps       = 1e-9
	keyScale  = 1e6
	maxProbe  = 1e-3
	probeFrac = 1e-3
)

type key struct{ x, y int64 }

func keyOf(p vec.Vec2) key {
	return key{int64(math.Round(p.X * keyScale)), int64(math.Round(p.Y * keyScale))}
}

func (k key) less(o key) bool {
	if k.x != o.x {
		return k.x < o.x
	}
	return k.y < o.y
}

type segment struct{ a, b vec.Vec2 }

// Union returns the region covered by a or b.
func (Overlay) Union(a, b Region) Region {
	edges := append(collectEdges(a), collectEdges(b)...)
	if len(edges) == 0 {
		return nil
	}
	inside := func(p vec.Vec2) bool { return winding(a, p) != 0 || winding(b, p) != 0 }
	kept := classify(splitEdges(edges), inside)
	loops := splitAtRepeats(chain(kept))

	var out Region
	for _, c := range loops {
		c = simplify(c)
		if len(c) >= 3 && math.Abs(c.Area()) > eps {
			out = append(out, c)
		}
	}
	return normalize(out)
}

func collectEdges(r Region) []segment {
	var out []segment
	for _, c := range r {
		for i := range c {
			p, q := c[i], c[(i+1)%len(c)]
			if keyOf(p) != keyOf(q) {
				out = append(out, segment{p, q})
			}
		}
	}
	return out
}

// splitEdges cuts every edge at its crossings with every other edge and
// returns the resulting undirected segments without duplicates.
func splitEdges(edges []segment) []segment {
	params := make([][]float64, len(edges))
	for i := range params {
		params[i] = []float64{0, 1}
	}
	for i := range edges {
		p, r := edges[i].a, edges[i].b.Sub(edges[i].a)
		rl := r.Length()
		for j := i + 1; j < len(edges); j++ {
			q, s := edges[j].a, edges[j].b.Sub(edges[j].a)
			sl := s.Length()
			d := cross(r, s)
			qp := q.Sub(p)
			switch {
			case math.Abs(d) > eps*rl*sl:
				t, u := cross(qp, s)/d, cross(qp, r)/d
				if t >= -eps && t <= 1+eps && u >= -eps && u <= 1+eps {
					params[i] = append(params[i], clamp01(t))
					params[j] = append(params[j], clamp01(u))
				}
			case math.Abs(cross(qp, r)) <= 10*eps*rl*rl:
				// collinear: each edge is cut where the other one ends
				rr, ss := dot(r, r), dot(s, s)
				for _, pt := range [2]vec.Vec2{q, edges[j].b} {
					if t := dot(pt.Sub(p), r) / rr; t > 0 && t < 1 {
						params[i] = append(params[i], t)
					}
				}
				for _, pt := range [2]vec.Vec2{p, edges[i].b} {
					if u := dot(pt.Sub(q), s) / ss; u > 0 && u < 1 {
						params[j] = append(params[j], u)
					}
				}
			}
		}
	}

	pool := map[key]vec.Vec2{}
	canon := func(p vec.Vec2) vec.Vec2 {
		k := keyOf(p)
		if c, ok := pool[k]; ok {
			return c
		}
		pool[k] = p
		return p
	}

	seen := map[[2]key]bool{}
	var out []segment
	for i, e := range edges {
		ts := params[i]
		sort.Float64s(ts)
		pts := make([]vec.Vec2, 0, len(ts))
		for k, t := range ts {
			if k > 0 && t == ts[k-1] {
				continue
			}
			switch t {
			case 0:
				pts = append(pts, canon(e.a))
			case 1:
				pts = append(pts, canon(e.b))
			default:
				pts = append(pts, canon(e.a.Add(e.b.Sub(e.a).Mul(t))))
			}
		}
		for k := 1; k < len(pts); k++ {
			a, b := pts[k-1], pts[k]
			ka, kb := keyOf(a), keyOf(b)
			if ka == kb {
				continue
			}
			if kb.less(ka) {
				a, b, ka, kb = b, a, kb, ka
			}
			if id := [2]key{ka, kb}; !seen[id] {
				seen[id] = true
				out = append(out, segment{a, b})
			}
		}
	}
	return out
}

// classify keeps the boundary segments, each oriented with the filled side on its left.
func classify(segs []segment, inside func(vec.Vec2) bool) []segment {
	var kept []segment
	for _, s := range segs {
		d := s.b.Sub(s.a)
		l := d.Length()
		n := vec.Vec2{X: -d.Y / l, Y: d.X / l}
		m := s.a.Add(s.b).Mul(0.5)
		delta := math.Min(maxProbe, l*probeFrac)
		left := inside(m.Add(n.Mul(delta)))
		right := inside(m.Sub(n.Mul(delta)))
		switch {
		case left && !right:
			kept = append(kept, s)
		case right && !left:
			kept = append(kept, segment{s.b, s.a})
		}
	}
	return kept
}

// chain links kept segments into closed loops. At every vertex the walk takes
// the sharpest left turn, which keeps regions that only touch at a point apart.
func chain(kept []segment) []Polygon {
	outgoing := map[key][]int{}
	for i, s := range kept {
		k := keyOf(s.a)
		outgoing[k] = append(outgoing[k], i)
	}
	succ := make([]int, len(kept))
	for i, s := range kept {
		back := s.a.Sub(s.b)
		succ[i] = -1
		best := math.Inf(-1)
		for _, j := range outgoing[keyOf(s.b)] {
			v := kept[j].b.Sub(kept[j].a)
			ang := math.Atan2(cross(back, v), dot(back, v))
			if ang <= 0 {
				ang += 2 * math.Pi
			}
			if ang > best {
				best, succ[i] = ang, j
			}
		}
	}

	used := make([]bool, len(kept))
	var loops []Polygon
	for start := range kept {
		if used[start] {
			continue
		}
		var loop Polygon
		for j := start; j >= 0 && !used[j]; j = succ[j] {
			used[j] = true
			loop = append(loop, kept[j].a)
		}
		loops = append(loops, loop)
	}
	return loops
}

// splitAtRepeats breaks a loop that passes a vertex twice into simple loops.
func splitAtRepeats(loops []Polygon) []Polygon {
	var out []Polygon
	for _, c := range loops {
		var stack Polygon
		at := map[key]int{}
		for _, p := range c {
			k := keyOf(p)
			if i, ok := at[k]; ok {
				out = append(out, append(Polygon(nil), stack[i:]...))
				for _, q := range stack[i:] {
					delete(at, keyOf(q))
				}
				stack = stack[:i]
			}
			at[k] = len(stack)
			stack = append(stack, p)
		}
		if len(stack) > 0 {
			out = append(out, stack)
		}
	}
	return out
}

// simplify drops repeated and collinear vertices, spikes included.
func simplify(c Polygon) Polygon {
	c = append(Polygon(nil), c...)
	for changed := true; changed && len(c) >= 3; {
		changed = false
		n := len(c)
		for i := 0; i < n; i++ {
			a, b, e := c[(i+n-1)%n], c[i], c[(i+1)%n]
			u, v := b.Sub(a), e.Sub(b)
			if keyOf(a) == keyOf(b) || math.Abs(cross(u, v)) <= eps*math.Max(1, u.Length()*v.Length()) {
				c = append(c[:i], c[i+1:]...)
				changed = true
				break
			}
		}
	}
	return c
}

func normalize(r Region) Region {
	keys := make([][]key, len(r))
	for i, c := range r {
		first := 0
		for j := range c {
			if keyOf(c[j]).less(keyOf(c[first])) {
				first = j
			}
		}
		r[i] = append(append(Polygon(nil), c[first:]...), c[:first]...)
		keys[i] = make([]key, len(r[i]))
		for j, p := range r[i] {
			keys[i][j] = keyOf(p)
		}
	}
	idx := make([]int, len(r))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool { return keysLess(keys[idx[x]], keys[idx[y]]) })
	out := make(Region, len(r))
	for i, j := range idx {
		out[i] = r[j]
	}
	return out
}

func keysLess(a, b []key) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i].less(b[i])
		}
	}
	return len(a) < len(b)
}

// Serialize writes the region as path data: one "M x y L x y ... Z" subpath per
// contour, coordinates rounded to six decimals.
func (Overlay) Serialize(r Region) string {
	var sb strings.Builder
	for _, c := range r {
		if len(c) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		for i, p := range c {
			if i == 0 {
				sb.WriteString("M ")
			} else {
				sb.WriteString(" L ")
			}
			sb.WriteString(formatCoord(p.X))
			sb.WriteByte(' ')
			sb.WriteString(formatCoord(p.Y))
		}
		sb.WriteString(" Z")
	}
	return sb.String()
}

func formatCoord(v float64) string {
	v = math.Round(v*keyScale) / keyScale
	if v == 0 {
		v = 0 // no "-0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// winding is the nonzero winding number of r around p; edges count on a
// half-open span so vertices on the ray are not counted twice.
func winding(r Region, p vec.Vec2) int {
	w := 0
	for _, c := range r {
		for i := range c {
			a, b := c[i], c[(i+1)%len(c)]
			side := cross(b.Sub(a), p.Sub(a))
			if a.Y <= p.Y {
				if b.Y > p.Y && side > 0 {
					w++
				}
			} else if b.Y <= p.Y && side < 0 {
				w--
			}
		}
	}
	return w
}

func cross(a, b vec.Vec2) float64 { return a.X*b.Y - a.Y*b.X }
func dot(a, b vec.Vec2) float64   { return a.X*b.X + a.Y*b.Y }

func clamp01(t float64) float64 { return math.Min(math.Max(t, 0), 1) }
