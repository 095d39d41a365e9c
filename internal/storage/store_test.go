/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "state", "epitax.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBlobStores(t *testing.T) {
	stores := map[string]func(t *testing.T) BlobStore{
		"memory": func(*testing.T) BlobStore { return NewMemoryStore() },
		"sqlite": func(t *testing.T) BlobStore { return openTestSQLite(t) },
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t)
			if _, ok, err := s.Load(ctx, StateKey); err != nil || ok {
				t.Fatalf("empty store: ok=%v err=%v", ok, err)
			}
			if err := s.Save(ctx, StateKey, `{"a":1}`); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save(ctx, StateKey, `{"a":2}`); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, ok, err := s.Load(ctx, StateKey)
			if err != nil || !ok || got != `{"a":2}` {
				t.Fatalf("Load = %q %v %v", got, ok, err)
			}
			if _, ok, _ := s.Load(ctx, CrashKey); ok {
				t.Fatalf("keys must be independent")
			}
			if err := s.Delete(ctx, StateKey); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, ok, _ := s.Load(ctx, StateKey); ok {
				t.Fatalf("value still present after Delete")
			}
		})
	}
}

func TestSQLiteRevisionsPruned(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	s.Keep = 3
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	i := 0
	s.now = func() time.Time { i++; return base.Add(time.Duration(i) * time.Millisecond) }
	for n := 1; n <= 5; n++ {
		if err := s.Save(ctx, StateKey, fmt.Sprintf("v%d", n)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	_ = s.Save(ctx, CrashKey, "crash")

	revs, err := s.Revisions(ctx, StateKey, 10)
	if err != nil {
		t.Fatalf("Revisions: %v", err)
	}
	if len(revs) != 3 {
		t.Fatalf("want 3 revisions after prune, got %d", len(revs))
	}
	for i, want := range []string{"v5", "v4", "v3"} {
		if revs[i].Blob != want {
			t.Fatalf("revision %d = %q, want %q", i, revs[i].Blob, want)
		}
	}
	if !revs[0].TS.After(revs[1].TS) {
		t.Fatalf("revisions not newest first: %v %v", revs[0].TS, revs[1].TS)
	}
	if revs, _ := s.Revisions(ctx, StateKey, 1); len(revs) != 1 {
		t.Fatalf("limit ignored")
	}
}

func TestSQLiteReopenKeepsDataAndSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "epitax.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, StateKey, "kept"); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()
	v, err := s.SchemaVersion(ctx)
	if err != nil || v != sqliteSchemaVersion {
		t.Fatalf("schema = %d, %v", v, err)
	}
	if got, ok, _ := s.Load(ctx, StateKey); !ok || got != "kept" {
		t.Fatalf("Load after reopen = %q %v", got, ok)
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
