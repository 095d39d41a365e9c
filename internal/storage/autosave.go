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
	"log/slog"
	"sync"
	"time"

	"epitax/internal/domain"
	applog "epitax/internal/log"
)

// DefaultAutosaveInterval matches the two second cadence of the editor UI.
const DefaultAutosaveInterval = 2 * time.Second

// Source is what the Autosaver watches; *editor.Editor satisfies it.
type Source interface {
	SnapshotRevision() (*domain.Document, uint64)
}

// Autosaver periodically persists the document when its revision changed.
type Autosaver struct {
	repo     *Repository
	src      Source
	interval time.Duration

	mu    sync.Mutex
	saved uint64
	log   *slog.Logger
}

// NewAutosaver treats the source's current revision as already saved.
func NewAutosaver(repo *Repository, src Source, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	_, rev := src.SnapshotRevision()
	return &Autosaver{
		repo:     repo,
		src:      src,
		interval: interval,
		saved:    rev,
		log:      applog.WithComponent("autosave"),
	}
}

// Flush saves if anything changed since the last save and reports whether it wrote.
func (a *Autosaver) Flush(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	doc, rev := a.src.SnapshotRevision()
	if rev == a.saved {
		return false, nil
	}
	if err := a.repo.Save(ctx, doc); err != nil {
		return false, err
	}
	a.saved = rev
	a.log.Debug("document saved", slog.Uint64("rev", rev))
	return true, nil
}

// Run flushes every interval until ctx is done, then flushes once more with a
// short deadline of its own. Save errors are logged and retried on the next tick.
func (a *Autosaver) Run(ctx context.Context) error {
	t := time.NewTicker(a.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := a.Flush(fctx); err != nil {
				a.log.Error("final save failed", slog.Any("err", err))
				return err
			}
			return nil
		case <-t.C:
			if _, err := a.Flush(ctx); err != nil {
				a.log.Warn("autosave failed", slog.Any("err", err))
			}
		}
	}
}
