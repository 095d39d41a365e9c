/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package grid

import "epitax/internal/domain"

// Stitch joins two corner triples into one closed six-vertex polygon.
//
// The polygon runs through v1 and then v2, so v1's last vertex connects to v2's
// first and v2's last closes back onto v1's first. v2 is reversed when joining
// end to matching end (p1 to q1, p3 to q3) is strictly closer in squared
// distance than joining crosswise; on a tie v2 keeps its order. If the chosen
// loop still crosses itself and the other order would not, the other order wins.
// When both orders cross, the paired order is returned crossing; the union step
// resolves it by nonzero winding. Triples from neighbouring cells always admit
// a crossing-free order.
func Stitch(v1, v2 domain.CornerTriple) [6]domain.Point {
	kept := join(v1, v2, false)
	reversed := join(v1, v2, true)
	out, alt := kept, reversed
	if reverseSecond(v1, v2) {
		out, alt = reversed, kept
	}
	if SelfIntersects(out[:]) && !SelfIntersects(alt[:]) {
		return alt
	}
	return out
}

// reverseSecond applies the pairing rule alone; ties keep v2 as it is.
func reverseSecond(v1, v2 domain.CornerTriple) bool {
	p1, p3 := v1[0], v1[2]
	q1, q3 := v2[0], v2[2]
	return dist2(p1, q1)+dist2(p3, q3) < dist2(p1, q3)+dist2(p3, q1)
}

func join(v1, v2 domain.CornerTriple, reverse bool) [6]domain.Point {
	if reverse {
		return [6]domain.Point{v1[0], v1[1], v1[2], v2[2], v2[1], v2[0]}
	}
	return [6]domain.Point{v1[0], v1[1], v1[2], v2[0], v2[1], v2[2]}
}

func dist2(a, b domain.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}

// SelfIntersects reports whether two non-adjacent edges of the closed polygon
// cross at a single interior point. Edges that merely touch or run collinear
// are not counted; the union step dissolves those.
func SelfIntersects(poly []domain.Point) bool {
	n := len(poly)
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if properCross(a, b, poly[j], poly[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

func orient(o, a, b domain.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func properCross(a, b, c, d domain.Point) bool {
	d1, d2 := orient(c, d, a), orient(c, d, b)
	d3, d4 := orient(a, b, c), orient(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
