// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package api exposes the archive over HTTP: upload, ingestion trigger,
// retrieval, health, and stats endpoints behind optional bearer-token
// authentication. Errors are returned as JSON {error, code} bodies with
// stable numeric codes so integrations can branch without parsing
// messages.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/ingest"
)

// Archive is the slice of archive behavior the HTTP surface needs. The
// root recollect.Archive satisfies it; tests substitute stubs.
type Archive interface {
	// ApplyUpload validates and ingests an uploaded export stream.
	ApplyUpload(ctx context.Context, r io.Reader, opts ingest.UploadOptions) (*ingest.UploadOutcome, error)

	// Ingest runs the pipeline over the configured export file.
	Ingest(ctx context.Context, mode ingest.Mode) (*core.RunReport, error)

	// Search runs hybrid retrieval over the stored documents.
	Search(ctx context.Context, query string, topK int, threshold float32) ([]*core.SearchResult, error)

	// CountDocuments reports how many documents the store holds.
	CountDocuments(ctx context.Context) (int, error)

	// LatestRun returns the most recent run report, nil when none exist.
	LatestRun(ctx context.Context) (*core.RunReport, error)

	// RecentRuns returns up to limit run reports, newest first.
	RecentRuns(ctx context.Context, limit int) ([]*core.RunReport, error)
}

// Server serves the archive API on a single address. Construct with
// NewServer, run with Start, and stop with Shutdown.
type Server struct {
	router  *chi.Mux
	archive Archive
	token   string
	logger  *slog.Logger
	http    *http.Server
}

// NewServer builds a Server for the given archive. An empty token leaves
// every endpoint unauthenticated; otherwise all endpoints except /health
// require Authorization: Bearer <token>.
func NewServer(addr string, token string, archive Archive) (*Server, error) {
	if archive == nil {
		return nil, ErrArchiveRequired
	}

	s := &Server{
		archive: archive,
		token:   token,
		logger:  slog.Default().With("component", "api"),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)

	router.Get("/health", s.health)
	router.Group(func(r chi.Router) {
		r.Use(bearerAuth(token))
		r.Post("/upload", s.upload)
		r.Post("/ingest", s.ingest)
		r.Post("/retrieval", s.retrieval)
		r.Get("/stats", s.stats)
	})

	s.router = router
	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Start blocks serving requests until Shutdown is called or the listener
// fails. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("api server starting", "addr", s.http.Addr, "auth", s.token != "")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
