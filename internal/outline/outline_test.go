/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package outline

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/geom/rect"

	"epitax/internal/domain"
	"epitax/internal/grid"
)

func TestInterpretAbsoluteAndRelative(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []PathCmd
	}{
		{"absolute", "M 0 0 L 10 0 H 10 V 20 Z", []PathCmd{
			{Op: MoveTo, Data: [6]float64{0, 0}},
			{Op: LineTo, Data: [6]float64{10, 0}},
			{Op: LineTo, Data: [6]float64{10, 0}},
			{Op: LineTo, Data: [6]float64{10, 20}},
			{Op: Close},
		}},
		{"relative", "m5,5 l10,0 v10 h-10 z", []PathCmd{
			{Op: MoveTo, Data: [6]float64{5, 5}},
			{Op: LineTo, Data: [6]float64{15, 5}},
			{Op: LineTo, Data: [6]float64{15, 15}},
			{Op: LineTo, Data: [6]float64{5, 15}},
			{Op: Close},
		}},
		{"relative curves", "M10 10 q5 5 10 0 c1 1 2 2 3 3", []PathCmd{
			{Op: MoveTo, Data: [6]float64{10, 10}},
			{Op: QuadTo, Data: [6]float64{15, 15, 20, 10}},
			{Op: CubicTo, Data: [6]float64{21, 11, 22, 12, 23, 13}},
		}},
		{"exponent", "M1e2 -2.5E1L.5 0", []PathCmd{
			{Op: MoveTo, Data: [6]float64{100, -25}},
			{Op: LineTo, Data: [6]float64{0.5, 0}},
		}},
		{"close returns to subpath start", "M 10 10 L 20 10 L 20 20 Z l 5 0", []PathCmd{
			{Op: MoveTo, Data: [6]float64{10, 10}},
			{Op: LineTo, Data: [6]float64{20, 10}},
			{Op: LineTo, Data: [6]float64{20, 20}},
			{Op: Close},
			{Op: LineTo, Data: [6]float64{15, 10}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Path
			st, err := Interpret(tt.data, &p)
			if err != nil {
				t.Fatalf("Interpret: %v", err)
			}
			if d := cmp.Diff(tt.want, p.Cmds); d != "" {
				t.Fatalf("commands differ (-want +got):\n%s", d)
			}
			if st.Primitives != len(tt.want) {
				t.Fatalf("Primitives = %d, want %d", st.Primitives, len(tt.want))
			}
		})
	}
}

func TestInterpretNoCommandsIsNoop(t *testing.T) {
	for _, data := range []string{"", "   ", "1 2 3", "e5"} {
		var p Path
		st, err := Interpret(data, &p)
		if err != nil {
			t.Fatalf("Interpret(%q): %v", data, err)
		}
		if p.Len() != 0 || st.Primitives != 0 {
			t.Fatalf("Interpret(%q) emitted %d primitives", data, p.Len())
		}
	}
}

func TestInterpretArityRejectsWholePath(t *testing.T) {
	var p Path
	_, err := Interpret("M 0 0 L 10 0 L 5", &p)
	if !errors.Is(err, ErrArity) {
		t.Fatalf("want ErrArity, got %v", err)
	}
	var ae *ArityError
	if !errors.As(err, &ae) {
		t.Fatalf("want *ArityError, got %T", err)
	}
	if ae.Index != 2 || ae.Command != 'L' || ae.Want != 2 || ae.Got != 1 {
		t.Fatalf("unexpected error detail %+v", ae)
	}
	if p.Len() != 0 {
		t.Fatalf("builder received %d primitives before the error", p.Len())
	}
}

func TestInterpretExtraGroupsDropped(t *testing.T) {
	var p Path
	st, err := Interpret("M 0 0 L 10 0 20 0 30 0 Z", &p)
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if st.Dropped != 2 {
		t.Fatalf("Dropped = %d, want 2", st.Dropped)
	}
	if p.Len() != 3 || p.Cmds[1].Data[0] != 10 {
		t.Fatalf("only the first group should be used: %+v", p.Cmds)
	}
}

func TestInterpretUnknownCommandsSkipped(t *testing.T) {
	var p Path
	st, err := Interpret("M 0 0 A 1 1 0 0 1 5 5 L 1 1", &p)
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if st.Unknown != 1 || p.Len() != 2 {
		t.Fatalf("stats %+v, cmds %+v", st, p.Cmds)
	}
}

func TestPathBoundsAndArea(t *testing.T) {
	var p Path
	p.MoveTo(0, 0)
	p.LineTo(10, 0)
	p.LineTo(0, 10)
	p.Close()
	if b := p.Bounds(); b != (rect.Rect{LLx: 0, LLy: 0, URx: 10, URy: 10}) {
		t.Fatalf("unexpected bounds: %+v", b)
	}
	if a := p.Area(); a != 50 {
		t.Fatalf("area = %v, want 50", a)
	}
	var empty Path
	if b := empty.Bounds(); b != (rect.Rect{}) {
		t.Fatalf("empty bounds = %+v", b)
	}

	// a quarter disc approximated by one cubic
	var q Path
	q.MoveTo(0, 0)
	q.LineTo(1, 0)
	k := 0.5522847498
	q.CubicTo(1, k, k, 1, 0, 1)
	q.Close()
	if a := q.Area(); math.Abs(a-math.Pi/4) > 1e-3 {
		t.Fatalf("quarter disc area = %v", a)
	}
}

func TestPathReplay(t *testing.T) {
	var src, dst Path
	if _, err := Interpret("M 0 0 Q 1 1 2 0 C 3 1 4 1 5 0 Z", &src); err != nil {
		t.Fatal(err)
	}
	src.Replay(&dst)
	if d := cmp.Diff(src.Cmds, dst.Cmds); d != "" {
		t.Fatalf("replay differs:\n%s", d)
	}
}

func shapeFromClicks(c1, r1 int, o1 [2]float64, c2, r2 int, o2 [2]float64) domain.Shape {
	g := domain.DefaultGrid()
	v := grid.Stitch(grid.Resolve(g.CellSize, c1, r1, o1[0], o1[1]), grid.Resolve(g.CellSize, c2, r2, o2[0], o2[1]))
	return domain.Shape{ID: "s", Vertices: v}
}

func TestMergeEmpty(t *testing.T) {
	if got := Merge(nil, 600, Default); got != "" {
		t.Fatalf("Merge(nil) = %q", got)
	}
}

func TestMergeSquareFlipsAtBaseline(t *testing.T) {
	s := shapeFromClicks(0, 0, [2]float64{10, 10}, 0, 0, [2]float64{90, 90})
	got := Merge([]domain.Shape{s}, 600, Default)
	want := "M 0 500 L 100 500 L 100 600 L 0 600 Z"
	if got != want {
		t.Fatalf("Merge = %q, want %q", got, want)
	}
}

func TestMergeCopiesAndOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	offs := [][2]float64{{10, 10}, {90, 10}, {10, 90}, {90, 90}}
	for trial := 0; trial < 50; trial++ {
		var shapes []domain.Shape
		n := 1 + rng.Intn(5)
		for i := 0; i < n; i++ {
			c, r := rng.Intn(6), rng.Intn(8)
			shapes = append(shapes, shapeFromClicks(c, r, offs[rng.Intn(4)],
				min(5, c+rng.Intn(2)), min(7, r+rng.Intn(2)), offs[rng.Intn(4)]))
		}
		one := Merge(shapes[:1], 600, Default)
		if got := Merge([]domain.Shape{shapes[0], shapes[0], shapes[0]}, 600, Default); got != one {
			t.Fatalf("three copies %q != one copy %q", got, one)
		}
		want := Merge(shapes, 600, Default)
		rev := make([]domain.Shape, len(shapes))
		for i, s := range shapes {
			rev[len(shapes)-1-i] = s
		}
		if got := Merge(rev, 600, Default); got != want {
			t.Fatalf("reversed order %q != %q", got, want)
		}
	}
}

func TestMergeInterpretAreaRoundTrip(t *testing.T) {
	shapes := []domain.Shape{
		shapeFromClicks(0, 0, [2]float64{10, 10}, 0, 0, [2]float64{90, 90}),
		shapeFromClicks(1, 0, [2]float64{90, 10}, 1, 1, [2]float64{10, 90}),
		shapeFromClicks(2, 3, [2]float64{10, 90}, 3, 4, [2]float64{90, 10}),
		shapeFromClicks(0, 1, [2]float64{90, 90}, 1, 1, [2]float64{10, 10}),
	}
	region := MergeRegion(shapes, 600, Default)
	data := Default.Serialize(region)

	var p Path
	if _, err := Interpret(data, &p); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if p.Len() == 0 {
		t.Fatalf("no primitives for %q", data)
	}
	if math.Abs(p.Area()-region.Area()) > 1e-2 {
		t.Fatalf("recorded area %v, region area %v", p.Area(), region.Area())
	}
}
