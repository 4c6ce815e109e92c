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


package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
	"github.com/poiesic/recollect/telegram"
)

// UploadMode selects how an uploaded export is applied to the store.
type UploadMode string

const (
	// UploadMerge runs the upload through the incremental pipeline; existing
	// documents stay, content-derived IDs deduplicate overlap.
	UploadMerge UploadMode = "merge"

	// UploadReplace backs the store up, clears all documents, and ingests
	// the upload as the new corpus.
	UploadReplace UploadMode = "replace"
)

// ParseUploadMode maps a user-supplied mode string to an UploadMode.
// Empty defaults to merge.
func ParseUploadMode(s string) (UploadMode, error) {
	switch s {
	case "", string(UploadMerge):
		return UploadMerge, nil
	case string(UploadReplace):
		return UploadReplace, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// UploadOptions controls how ApplyUpload treats the incoming export.
type UploadOptions struct {
	// Mode is merge or replace. Empty means merge.
	Mode UploadMode

	// SourceTag names the uploaded chat; merged documents carry it in
	// metadata so mixed corpora stay attributable.
	SourceTag string
}

// UploadOutcome reports what an applied upload did.
type UploadOutcome struct {
	Mode       UploadMode      `json:"mode"`
	BackupPath string          `json:"backup_path,omitempty"`
	Report     *core.RunReport `json:"report"`
}

// Coordinator applies uploaded exports to the store, backing up before any
// destructive replace.
type Coordinator struct {
	pipeline *Pipeline
	store    storage.DocumentRepository
	dbPath   string
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator. dbPath is the on-disk database
// location used to place pre-replace backups; empty (in-memory store) skips
// backups.
func NewCoordinator(pipeline *Pipeline, store storage.DocumentRepository, dbPath string) (*Coordinator, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline required")
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	return &Coordinator{
		pipeline: pipeline,
		store:    store,
		dbPath:   dbPath,
		logger:   slog.Default().With("component", "coordinator"),
	}, nil
}

// ApplyUpload validates, optionally backs up, and ingests an uploaded
// export. Structural validation happens before any store or provider work,
// so invalid payloads fail fast and leave the store untouched.
func (c *Coordinator) ApplyUpload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadOutcome, error) {
	export, err := telegram.ParseExport(r)
	if err != nil {
		return nil, err
	}

	if opts.Mode == "" {
		opts.Mode = UploadMerge
	}

	outcome := &UploadOutcome{Mode: opts.Mode}

	switch opts.Mode {
	case UploadReplace:
		backupPath, err := c.backup(ctx)
		if err != nil {
			return nil, fmt.Errorf("backup before replace failed: %w", err)
		}
		outcome.BackupPath = backupPath

		if err := c.store.DeleteAllDocuments(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear documents: %w", err)
		}

		report, err := c.pipeline.IngestExport(ctx, export, ModeFull, opts.SourceTag)
		outcome.Report = report
		if err != nil {
			return outcome, err
		}

	case UploadMerge:
		report, err := c.pipeline.IngestExport(ctx, export, ModeIncremental, opts.SourceTag)
		outcome.Report = report
		if err != nil {
			return outcome, err
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, opts.Mode)
	}

	return outcome, nil
}

// backup streams the store to a timestamped file next to the database.
// The file is copied out, never moved: the live database stays intact even
// if the subsequent replace fails.
func (c *Coordinator) backup(ctx context.Context) (string, error) {
	if c.dbPath == "" {
		c.logger.Warn("no database path configured, skipping pre-replace backup")
		return "", nil
	}

	path := fmt.Sprintf("%s-%s.backup", c.dbPath, time.Now().UTC().Format("20060102-150405"))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	version, err := c.store.Backup(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	c.logger.Info("store backed up before replace", "path", path, "version", version)
	return path, nil
}
