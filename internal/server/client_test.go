/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"epitax/internal/domain"
	"epitax/internal/editor"
)

func TestClientRoundTrip(t *testing.T) {
	ed := editor.New(nil, domain.DefaultGrid())
	ts := httptest.NewServer(New(ed, nil).Handler())
	defer ts.Close()
	ctx := context.Background()
	c := NewClient(ts.URL + "/")

	if _, err := c.Font(ctx); !isStatus(err, http.StatusUnprocessableEntity) {
		t.Fatalf("font on empty design: %v", err)
	}
	first, err := c.Click(ctx, 'K', 210, 310)
	if err != nil || first.Pending == nil {
		t.Fatalf("first click: %+v %v", first, err)
	}
	second, err := c.Click(ctx, 'K', 290, 390)
	if err != nil || second.Shape == nil {
		t.Fatalf("second click: %+v %v", second, err)
	}
	data, err := c.Outline(ctx, 'K')
	if err != nil || data == "" || data != *second.Outline {
		t.Fatalf("outline %q vs %v (%v)", data, second.Outline, err)
	}
	font, err := c.Font(ctx)
	if err != nil || !bytes.HasPrefix(font, []byte("OTTO")) {
		t.Fatalf("font: %v", err)
	}
	list, err := c.Glyphs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range list {
		if g.Character == "K" && g.Shapes != 1 {
			t.Fatalf("K has %d shapes", g.Shapes)
		}
	}
	if err := c.ResetGlyph(ctx, 'K'); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := c.Click(ctx, 'K', 9999, 1); !isStatus(err, http.StatusBadRequest) {
		t.Fatalf("out of grid: %v", err)
	}
}

func isStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status && ae.Message != ""
}
