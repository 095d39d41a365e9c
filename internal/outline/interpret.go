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
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"unicode"

	applog "epitax/internal/log"
)

// ErrArity is wrapped by every *ArityError.
var ErrArity = errors.New("path command has too few arguments")

// ArityError reports the first command that lacks arguments.
type ArityError struct {
	Index   int  // position of the command in the path data
	Command byte // the command letter as written
	Want    int
	Got     int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("command %d (%c): want %d arguments, got %d", e.Index, e.Command, e.Want, e.Got)
}

func (e *ArityError) Unwrap() error { return ErrArity }

// Stats summarizes one Interpret call.
type Stats struct {
	Commands   int // runs recognized as commands, unknown letters included
	Primitives int // builder calls made
	Dropped    int // argument groups beyond the first that were ignored
	Unknown    int // runs whose letter is not a supported command
}

var (
	// 'e' is left out so exponents stay inside the number they belong to
	runPattern    = regexp.MustCompile(`(?i)[a-df-z][^a-df-z]*`)
	numberPattern = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)
)

var arity = map[byte]int{'m': 2, 'l': 2, 'h': 1, 'v': 1, 'q': 4, 'c': 6, 'z': 0}

type run struct {
	letter byte
	args   []float64
}

// Interpret parses path data and emits one primitive per command to b, in
// absolute coordinates. Relative commands resolve against the current point;
// after Z the current point is the start of the closed subpath. All commands
// are checked before the first primitive is emitted.
func Interpret(data string, b Builder) (Stats, error) {
	var st Stats
	var runs []run
	for i, s := range runPattern.FindAllString(data, -1) {
		r := run{letter: s[0]}
		for _, tok := range numberPattern.FindAllString(s[1:], -1) {
			if v, err := strconv.ParseFloat(tok, 64); err == nil {
				r.args = append(r.args, v)
			}
		}
		st.Commands++
		want, ok := arity[byte(unicode.ToLower(rune(r.letter)))]
		if !ok {
			st.Unknown++
			continue
		}
		if len(r.args) < want {
			return Stats{}, &ArityError{Index: i, Command: r.letter, Want: want, Got: len(r.args)}
		}
		if want > 0 && len(r.args) > want {
			extra := (len(r.args) - 1) / want
			st.Dropped += extra
			applog.WithComponent("outline").Warn("extra argument groups ignored",
				slog.Int("command", i), slog.String("letter", string(r.letter)), slog.Int("dropped", extra))
		}
		runs = append(runs, r)
	}

	var cx, cy, sx, sy float64
	for _, r := range runs {
		a := r.args
		switch r.letter {
		case 'M', 'm':
			if r.letter == 'm' {
				cx, cy = cx+a[0], cy+a[1]
			} else {
				cx, cy = a[0], a[1]
			}
			sx, sy = cx, cy
			b.MoveTo(cx, cy)
		case 'L', 'l':
			if r.letter == 'l' {
				cx, cy = cx+a[0], cy+a[1]
			} else {
				cx, cy = a[0], a[1]
			}
			b.LineTo(cx, cy)
		case 'H', 'h':
			if r.letter == 'h' {
				cx += a[0]
			} else {
				cx = a[0]
			}
			b.LineTo(cx, cy)
		case 'V', 'v':
			if r.letter == 'v' {
				cy += a[0]
			} else {
				cy = a[0]
			}
			b.LineTo(cx, cy)
		case 'Q', 'q':
			ox, oy := 0.0, 0.0
			if r.letter == 'q' {
				ox, oy = cx, cy
			}
			b.QuadTo(ox+a[0], oy+a[1], ox+a[2], oy+a[3])
			cx, cy = ox+a[2], oy+a[3]
		case 'C', 'c':
			ox, oy := 0.0, 0.0
			if r.letter == 'c' {
				ox, oy = cx, cy
			}
			b.CubicTo(ox+a[0], oy+a[1], ox+a[2], oy+a[3], ox+a[4], oy+a[5])
			cx, cy = ox+a[4], oy+a[5]
		case 'Z', 'z':
			b.Close()
			cx, cy = sx, sy
		}
		st.Primitives++
	}
	return st, nil
}
