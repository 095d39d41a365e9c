/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package clip

import (
	"math"
	"math/rand"
	"testing"

	"seehuhn.de/go/geom/vec"

	"epitax/internal/domain"
	"epitax/internal/grid"
)

func square(x, y, s float64) Polygon {
	return Polygon{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}}
}

func unionAll(polys ...Polygon) Region {
	var ov Overlay
	var r Region
	for _, p := range polys {
		r = ov.Union(r, Region{p})
	}
	return r
}

func TestUnionCases(t *testing.T) {
	ring := []Polygon{
		{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 1}, {X: 0, Y: 1}},
		{{X: 2, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 3}, {X: 2, Y: 3}},
		{{X: 0, Y: 2}, {X: 3, Y: 2}, {X: 3, Y: 3}, {X: 0, Y: 3}},
		{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 3}, {X: 0, Y: 3}},
	}
	cw := square(0, 0, 1)
	cw[1], cw[3] = cw[3], cw[1]

	tests := []struct {
		name     string
		polys    []Polygon
		want     string
		area     float64
		contours int
	}{
		{"shared edge dissolves", []Polygon{square(0, 0, 1), square(1, 0, 1)},
			"M 0 0 L 2 0 L 2 1 L 0 1 Z", 2, 1},
		{"overlap", []Polygon{square(0, 0, 2), square(1, 1, 2)},
			"M 0 0 L 2 0 L 2 1 L 3 1 L 3 3 L 1 3 L 1 2 L 0 2 Z", 7, 1},
		{"corner touch stays apart", []Polygon{square(0, 0, 1), square(1, 1, 1)},
			"M 0 0 L 1 0 L 1 1 L 0 1 Z M 1 1 L 2 1 L 2 2 L 1 2 Z", 2, 2},
		{"disjoint", []Polygon{square(0, 0, 1), square(5, 5, 1)},
			"M 0 0 L 1 0 L 1 1 L 0 1 Z M 5 5 L 6 5 L 6 6 L 5 6 Z", 2, 2},
		{"clockwise input", []Polygon{cw}, "M 0 0 L 1 0 L 1 1 L 0 1 Z", 1, 1},
		{"ring with hole", ring,
			"M 0 0 L 3 0 L 3 3 L 0 3 Z M 1 1 L 1 2 L 2 2 L 2 1 Z", 8, 2},
	}
	var ov Overlay
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := unionAll(tt.polys...)
			if got := ov.Serialize(r); got != tt.want {
				t.Fatalf("Serialize = %q, want %q", got, tt.want)
			}
			if math.Abs(r.Area()-tt.area) > 1e-9 {
				t.Fatalf("area = %v, want %v", r.Area(), tt.area)
			}
			if len(r) != tt.contours {
				t.Fatalf("contours = %d, want %d", len(r), tt.contours)
			}
		})
	}
}

func TestUnionEmpty(t *testing.T) {
	var ov Overlay
	if r := ov.Union(nil, nil); r != nil {
		t.Fatalf("Union(nil, nil) = %v", r)
	}
	if s := ov.Serialize(nil); s != "" {
		t.Fatalf("Serialize(nil) = %q", s)
	}
	// a degenerate sliver covers nothing
	flat := Polygon{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	if r := ov.Union(nil, Region{flat}); len(r) != 0 {
		t.Fatalf("flat polygon produced %v", r)
	}
}

func TestContains(t *testing.T) {
	r := unionAll(square(0, 0, 2), square(1, 1, 2))
	for _, p := range []vec.Vec2{{X: 0.5, Y: 0.5}, {X: 2.5, Y: 2.5}, {X: 1.5, Y: 1.5}} {
		if !r.Contains(p) {
			t.Errorf("%v should be inside", p)
		}
	}
	for _, p := range []vec.Vec2{{X: 2.5, Y: 0.5}, {X: 0.5, Y: 2.5}, {X: -1, Y: 0}} {
		if r.Contains(p) {
			t.Errorf("%v should be outside", p)
		}
	}
}

// randomShapes stitches random click pairs in neighbouring cells of the
// default grid and returns them Y-flipped at the baseline.
func randomShapes(rng *rand.Rand, n int) []Polygon {
	g := domain.DefaultGrid()
	offs := [][2]float64{{10, 10}, {90, 10}, {10, 90}, {90, 90}}
	out := make([]Polygon, n)
	for i := range out {
		c, r := rng.Intn(g.Cols), rng.Intn(g.Rows)
		c2 := min(g.Cols-1, max(0, c+rng.Intn(3)-1))
		r2 := min(g.Rows-1, max(0, r+rng.Intn(3)-1))
		o1, o2 := offs[rng.Intn(4)], offs[rng.Intn(4)]
		s := grid.Stitch(grid.Resolve(g.CellSize, c, r, o1[0], o1[1]), grid.Resolve(g.CellSize, c2, r2, o2[0], o2[1]))
		poly := make(Polygon, len(s))
		for j, p := range s {
			poly[j] = vec.Vec2{X: p.X(), Y: g.BaselineY() - p.Y()}
		}
		out[i] = poly
	}
	return out
}

func TestUnionOrderIndependentAndIdempotent(t *testing.T) {
	var ov Overlay
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		shapes := randomShapes(rng, 1+rng.Intn(6))
		want := ov.Serialize(unionAll(shapes...))

		shuffled := append([]Polygon(nil), shapes...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if got := ov.Serialize(unionAll(shuffled...)); got != want {
			t.Fatalf("trial %d: shuffled order differs\n got %s\nwant %s", trial, got, want)
		}
		doubled := append(append([]Polygon(nil), shapes...), shapes...)
		if got := ov.Serialize(unionAll(doubled...)); got != want {
			t.Fatalf("trial %d: duplicates change outline\n got %s\nwant %s", trial, got, want)
		}
	}
}

func TestUnionAreaMatchesCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	shapes := randomShapes(rng, 5)
	r := unionAll(shapes...)

	// sample a lattice and compare against the input coverage
	const step = 5.0
	var covered float64
	for x := 1.3; x < 600; x += step {
		for y := -200 + step/2; y < 600; y += step {
			p := vec.Vec2{X: x, Y: y}
			in := false
			for _, s := range shapes {
				if (Region{s}).Contains(p) {
					in = true
					break
				}
			}
			if in != r.Contains(p) {
				t.Fatalf("coverage mismatch at %v", p)
			}
			if in {
				covered += step * step
			}
		}
	}
	if math.Abs(covered-r.Area()) > 0.05*math.Max(covered, 1)+2*step*step {
		t.Fatalf("area %v far from sampled coverage %v", r.Area(), covered)
	}
}
