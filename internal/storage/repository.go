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
	"log/slog"

	"epitax/internal/domain"
	applog "epitax/internal/log"
)

// LoadSource tells where a loaded document came from.
type LoadSource string

const (
	SourceFresh     LoadSource = "fresh"     // nothing was stored
	SourceStored    LoadSource = "stored"    // current layout, used as is
	SourceMigrated  LoadSource = "migrated"  // upgraded and written back
	SourceMalformed LoadSource = "malformed" // unreadable, replaced by a fresh document
)

// LoadResult is the outcome of Repository.Load. Problem is set when the stored
// blob was malformed; the blob itself is left untouched in that case.
type LoadResult struct {
	Doc     *domain.Document
	Source  LoadSource
	Problem error
}

// Repository reads and writes whole documents through a BlobStore.
type Repository struct {
	store BlobStore
	grid  domain.Grid
	key   string
}

func NewRepository(store BlobStore, g domain.Grid) *Repository {
	return &Repository{store: store, grid: g, key: StateKey}
}

func (r *Repository) Store() BlobStore { return r.store }

// Load returns the stored document, or a fresh one when there is none or it
// cannot be read. Older layouts are upgraded and persisted before returning.
// Only store failures are returned as error.
func (r *Repository) Load(ctx context.Context) (LoadResult, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "load")
	blob, ok, err := r.store.Load(ctx, r.key)
	if err != nil {
		return LoadResult{}, err
	}
	if !ok {
		l.Debug("no stored document")
		return LoadResult{Doc: domain.NewDocument(r.grid), Source: SourceFresh}, nil
	}
	doc, migrated, err := Decode([]byte(blob), r.grid)
	if err != nil {
		l.Warn("stored document unreadable, starting fresh", slog.Any("err", err))
		return LoadResult{Doc: domain.NewDocument(r.grid), Source: SourceMalformed, Problem: err}, nil
	}
	if !migrated {
		l.Debug("document loaded", slog.Int("shapes", doc.ShapeCount()))
		return LoadResult{Doc: doc, Source: SourceStored}, nil
	}
	if err := r.Save(ctx, doc); err != nil {
		return LoadResult{}, fmt.Errorf("persist migrated document: %w", err)
	}
	l.Info("document migrated", slog.Int("to", domain.SchemaVersion), slog.Int("shapes", doc.ShapeCount()))
	return LoadResult{Doc: doc, Source: SourceMigrated}, nil
}

// Save replaces the stored document.
func (r *Repository) Save(ctx context.Context, doc *domain.Document) error {
	return r.SaveKey(ctx, r.key, doc)
}

// SaveKey stores doc under another key, e.g. CrashKey.
func (r *Repository) SaveKey(ctx context.Context, key string, doc *domain.Document) error {
	b, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return r.store.Save(ctx, key, string(b))
}

// Clear removes the stored document so the next Load starts fresh.
func (r *Repository) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, r.key)
}
