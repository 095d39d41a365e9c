/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes the editor over a small HTTP JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"epitax/internal/editor"
	applog "epitax/internal/log"
	"epitax/internal/outline"
	"epitax/internal/storage"
)

// Server routes HTTP requests to one Editor. Persistence is optional: with a
// nil repository nothing is saved.
type Server struct {
	ed       *editor.Editor
	repo     *storage.Repository
	u        outline.Unioner
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithUnioner replaces the default union engine for outlines and exports.
func WithUnioner(u outline.Unioner) Option { return func(s *Server) { s.u = u } }

// WithAutosaveInterval sets how often Run persists changes.
func WithAutosaveInterval(d time.Duration) Option { return func(s *Server) { s.interval = d } }

// WithClock replaces time.Now, used for download file names.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func New(ed *editor.Editor, repo *storage.Repository, opts ...Option) *Server {
	s := &Server{
		ed:       ed,
		repo:     repo,
		u:        outline.Default,
		interval: storage.DefaultAutosaveInterval,
		now:      time.Now,
		log:      applog.WithComponent("server"),
		mux:      http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler { return s.logRequests(s.mux) }

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln and drives the autosaver. When ctx is cancelled the
// HTTP server shuts down first, then the autosaver does its final save.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	l := applog.WithOperation(s.log, "serve")
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	saveCtx, stopSaving := context.WithCancel(context.Background())
	saved := make(chan error, 1)
	if s.repo != nil {
		a := storage.NewAutosaver(s.repo, s.ed, s.interval)
		go func() { saved <- a.Run(saveCtx) }()
	} else {
		saved <- nil
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()
	l.Info("listening", slog.String("addr", ln.Addr().String()))

	var err error
	select {
	case err = <-served:
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = srv.Shutdown(shutCtx)
		cancel()
		<-served
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	stopSaving()
	if serr := <-saved; serr != nil && err == nil {
		err = serr
	}
	l.Info("stopped")
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		lvl := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			lvl = slog.LevelError
		}
		s.log.Log(r.Context(), lvl, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)))
	})
}
