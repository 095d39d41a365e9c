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
	"sync"
	"time"
)

// Fixed keys the document is stored under.
const (
	StateKey = "fontDesignerState"
	CrashKey = "fontDesignerState.crash"
)

// BlobStore is a keyed store of serialized documents.
type BlobStore interface {
	// Load returns the blob for key; ok is false when nothing is stored.
	Load(ctx context.Context, key string) (blob string, ok bool, err error)
	Save(ctx context.Context, key, blob string) error
	Delete(ctx context.Context, key string) error
}

// Revision is one historical value of a key.
type Revision struct {
	TS   time.Time
	Blob string
}

// HistoryStore is a BlobStore that also keeps earlier values.
type HistoryStore interface {
	BlobStore
	// Revisions lists up to limit values, newest first.
	Revisions(ctx context.Context, key string, limit int) ([]Revision, error)
}

// MemoryStore keeps blobs in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string]string
	saves int
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{blobs: map[string]string{}} }

func (m *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	return b, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, key, blob string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = blob
	m.saves++
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// Saves counts Save calls, for tests that check write frequency.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
