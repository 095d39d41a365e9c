/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package grid

import (
	"errors"
	"math/rand"
	"testing"

	"epitax/internal/domain"
)

const cell = 100.0

func TestResolveQuadrants(t *testing.T) {
	tests := []struct {
		name   string
		wx, wy float64
		want   domain.CornerTriple
	}{
		{"top-left", 10, 10, domain.CornerTriple{{100, 0}, {0, 0}, {0, 100}}},
		{"top-right", 90, 10, domain.CornerTriple{{0, 0}, {100, 0}, {100, 100}}},
		{"bottom-left", 10, 90, domain.CornerTriple{{0, 0}, {0, 100}, {100, 100}}},
		{"bottom-right", 90, 90, domain.CornerTriple{{0, 100}, {100, 100}, {100, 0}}},
		// exactly half is neither top nor left
		{"half-half", 50, 50, domain.CornerTriple{{0, 100}, {100, 100}, {100, 0}}},
		{"half-x", 50, 10, domain.CornerTriple{{0, 0}, {100, 0}, {100, 100}}},
		{"half-y", 10, 50, domain.CornerTriple{{0, 0}, {0, 100}, {100, 100}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(cell, 0, 0, tt.wx, tt.wy); got != tt.want {
				t.Fatalf("Resolve = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveOffsetsByCell(t *testing.T) {
	got := Resolve(cell, 2, 3, 90, 10)
	want := domain.CornerTriple{{200, 300}, {300, 300}, {300, 400}}
	if got != want {
		t.Fatalf("Resolve(2,3) = %v, want %v", got, want)
	}
}

func TestResolvePropertiesAllCells(t *testing.T) {
	g := domain.DefaultGrid()
	rng := rand.New(rand.NewSource(7))
	for col := 0; col < g.Cols; col++ {
		for row := 0; row < g.Rows; row++ {
			for i := 0; i < 50; i++ {
				wx, wy := rng.Float64()*cell, rng.Float64()*cell
				tr := Resolve(cell, col, row, wx, wy)
				x0, y0 := float64(col)*cell, float64(row)*cell
				corners := map[domain.Point]bool{
					{x0, y0}: true, {x0 + cell, y0}: true,
					{x0, y0 + cell}: true, {x0 + cell, y0 + cell}: true,
				}
				for _, p := range tr {
					if !corners[p] {
						t.Fatalf("vertex %v of %v is not a corner of cell (%d,%d)", p, tr, col, row)
					}
				}
				nearest := domain.Point{x0, y0}
				if wx >= cell/2 {
					nearest[0] += cell
				}
				if wy >= cell/2 {
					nearest[1] += cell
				}
				if tr[1] != nearest {
					t.Fatalf("middle vertex %v, want quadrant corner %v (offset %v,%v)", tr[1], nearest, wx, wy)
				}
			}
		}
	}
}

func TestCheck(t *testing.T) {
	g := domain.DefaultGrid()
	if err := Check(g, 5, 7, 99.9, 0); err != nil {
		t.Fatalf("valid click rejected: %v", err)
	}
	bad := [][4]float64{{6, 0, 0, 0}, {0, 8, 0, 0}, {-1, 0, 0, 0}, {0, 0, 100, 0}, {0, 0, 0, -0.5}}
	for _, b := range bad {
		err := Check(g, int(b[0]), int(b[1]), b[2], b[3])
		if !errors.Is(err, ErrOutOfGrid) {
			t.Fatalf("Check(%v) = %v, want ErrOutOfGrid", b, err)
		}
	}
}

func TestLocate(t *testing.T) {
	g := domain.DefaultGrid()
	col, row, wx, wy, err := Locate(g, 250, 730)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if col != 2 || row != 7 || wx != 50 || wy != 30 {
		t.Fatalf("Locate = %d,%d,%v,%v", col, row, wx, wy)
	}
	if _, _, _, _, err := Locate(g, 600, 0); !errors.Is(err, ErrOutOfGrid) {
		t.Fatalf("expected ErrOutOfGrid at right edge, got %v", err)
	}
}

func TestStitchSameCellSquare(t *testing.T) {
	v1 := Resolve(cell, 0, 0, 10, 10)
	v2 := Resolve(cell, 0, 0, 90, 90)
	got := Stitch(v1, v2)
	want := [6]domain.Point{{100, 0}, {0, 0}, {0, 100}, {0, 100}, {100, 100}, {100, 0}}
	if got != want {
		t.Fatalf("Stitch = %v, want %v", got, want)
	}
}

func TestStitchReversesWhenEndsMatchCloser(t *testing.T) {
	// top-left cut of (0,0) with top-left cut of (1,0): joining p3 to q3 is shorter
	v1 := Resolve(cell, 0, 0, 10, 10) // (100,0) (0,0) (0,100)
	v2 := Resolve(cell, 1, 0, 10, 10) // (200,0) (100,0) (100,100)
	got := Stitch(v1, v2)
	want := [6]domain.Point{{100, 0}, {0, 0}, {0, 100}, {100, 100}, {100, 0}, {200, 0}}
	if got != want {
		t.Fatalf("Stitch = %v, want %v", got, want)
	}
}

func TestStitchPairingRule(t *testing.T) {
	v := domain.CornerTriple{{0, 0}, {10, 0}, {0, 10}}
	// straight 200+200 against crosswise 100+100
	w := domain.CornerTriple{{10, 10}, {20, 5}, {10, 0}}
	if reverseSecond(v, w) {
		t.Fatalf("crosswise closer must keep v2 order")
	}
	// straight 100+100 against crosswise 200+200
	a := domain.CornerTriple{{0, 0}, {-5, 5}, {0, 10}}
	b := domain.CornerTriple{{10, 0}, {15, 5}, {10, 10}}
	if !reverseSecond(a, b) {
		t.Fatalf("straight closer must reverse v2")
	}
	if got := Stitch(a, b); got[3] != b[2] || got[5] != b[0] {
		t.Fatalf("Stitch = %v, want v2 reversed", got)
	}
	// perpendicular chords tie exactly
	c := domain.CornerTriple{{0, 0}, {-5, 5}, {0, 10}}
	d := domain.CornerTriple{{20, 5}, {25, 0}, {30, 5}}
	if reverseSecond(c, d) {
		t.Fatalf("tie must keep v2 order")
	}
}

func TestStitchTieWhenBothOrdersCross(t *testing.T) {
	v1 := domain.CornerTriple{{0, 0}, {-1, -1}, {10, 10}}
	v2 := domain.CornerTriple{{10, 0}, {11, -1}, {0, 10}}
	got := Stitch(v1, v2)
	want := [6]domain.Point{{0, 0}, {-1, -1}, {10, 10}, {10, 0}, {11, -1}, {0, 10}}
	if got != want {
		t.Fatalf("Stitch = %v, want %v", got, want)
	}
}

// sameLoop reports whether a and b describe one closed loop, up to rotation
// and direction.
func sameLoop(a, b [6]domain.Point) bool {
	n := len(a)
	for start := 0; start < n; start++ {
		fwd, bwd := true, true
		for k := 0; k < n; k++ {
			if a[(start+k)%n] != b[k] {
				fwd = false
			}
			if a[(start-k+n)%n] != b[k] {
				bwd = false
			}
		}
		if fwd || bwd {
			return true
		}
	}
	return false
}

var offsets = [][2]float64{{10, 10}, {90, 10}, {10, 90}, {90, 90}}

// forPairs calls fn for every pair of triples whose cells are at most reach apart.
func forPairs(g domain.Grid, reach int, fn func(a, b domain.CornerTriple)) {
	for c1 := 0; c1 < g.Cols; c1++ {
		for r1 := 0; r1 < g.Rows; r1++ {
			for _, o1 := range offsets {
				a := Resolve(g.CellSize, c1, r1, o1[0], o1[1])
				for c2 := max(0, c1-reach); c2 <= min(g.Cols-1, c1+reach); c2++ {
					for r2 := max(0, r1-reach); r2 <= min(g.Rows-1, r1+reach); r2++ {
						for _, o2 := range offsets {
							fn(a, Resolve(g.CellSize, c2, r2, o2[0], o2[1]))
						}
					}
				}
			}
		}
	}
}

func TestStitchSymmetric(t *testing.T) {
	g := domain.DefaultGrid()
	forPairs(g, g.Rows, func(a, b domain.CornerTriple) {
		ab, ba := Stitch(a, b), Stitch(b, a)
		if !sameLoop(ab, ba) {
			t.Fatalf("Stitch(%v,%v)=%v and reverse order %v differ", a, b, ab, ba)
		}
	})
}

func TestStitchNeverCrossesForNeighbourCells(t *testing.T) {
	g := domain.DefaultGrid()
	n := 0
	forPairs(g, 1, func(a, b domain.CornerTriple) {
		n++
		s := Stitch(a, b)
		if len(s) != 6 {
			t.Fatalf("want 6 vertices")
		}
		if SelfIntersects(s[:]) {
			t.Fatalf("Stitch(%v,%v) = %v crosses itself", a, b, s)
		}
	})
	if n == 0 {
		t.Fatalf("no pairs visited")
	}
}

func TestStitchPrefersCrossFreeOrder(t *testing.T) {
	g := domain.DefaultGrid()
	forPairs(g, g.Rows, func(a, b domain.CornerTriple) {
		s := Stitch(a, b)
		if !SelfIntersects(s[:]) {
			return
		}
		alt1, alt2 := join(a, b, false), join(a, b, true)
		if !SelfIntersects(alt1[:]) || !SelfIntersects(alt2[:]) {
			t.Fatalf("Stitch(%v,%v) = %v crosses although a clean order exists", a, b, s)
		}
	})
}

func TestSelfIntersects(t *testing.T) {
	bowtie := []domain.Point{{0, 0}, {100, 100}, {100, 0}, {0, 100}}
	if !SelfIntersects(bowtie) {
		t.Fatalf("bowtie not detected")
	}
	square := []domain.Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	if SelfIntersects(square) {
		t.Fatalf("square reported as crossing")
	}
	// duplicated vertex and collinear spike only touch
	spike := []domain.Point{{100, 0}, {0, 0}, {0, 100}, {0, 100}, {100, 100}, {100, 0}}
	if SelfIntersects(spike) {
		t.Fatalf("touching vertices reported as crossing")
	}
}

func FuzzStitchNeighbourCells(f *testing.F) {
	f.Add(0, 0, 10.0, 10.0, 1, 1, 90.0, 90.0)
	f.Add(2, 3, 60.0, 40.0, 1, 3, 50.0, 50.0)
	g := domain.DefaultGrid()
	f.Fuzz(func(t *testing.T, c1, r1 int, x1, y1 float64, dc, dr int, x2, y2 float64) {
		if Check(g, c1, r1, x1, y1) != nil {
			t.Skip()
		}
		// second cell at most one step away, like a drawn stroke
		c2, r2 := c1+dc%2, r1+dr%2
		if Check(g, c2, r2, x2, y2) != nil {
			t.Skip()
		}
		a := Resolve(g.CellSize, c1, r1, x1, y1)
		b := Resolve(g.CellSize, c2, r2, x2, y2)
		s := Stitch(a, b)
		if SelfIntersects(s[:]) {
			t.Fatalf("Stitch(%v,%v) = %v crosses itself", a, b, s)
		}
		if !sameLoop(s, Stitch(b, a)) {
			t.Fatalf("Stitch(%v,%v) not symmetric", a, b)
		}
	})
}
