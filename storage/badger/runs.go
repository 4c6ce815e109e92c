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


package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

// RunReportRepository implements storage.RunReportRepository for BadgerDB.
type RunReportRepository struct {
	backend *Backend
}

var _ storage.RunReportRepository = (*RunReportRepository)(nil)

// NewRunReportRepository creates a new RunReportRepository.
func NewRunReportRepository(backend *Backend) *RunReportRepository {
	return &RunReportRepository{
		backend: backend,
	}
}

// SaveRunReport persists a run report keyed by its start time.
func (r *RunReportRepository) SaveRunReport(ctx context.Context, report *core.RunReport) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRunReportKey(report.StartedAt)
		value := storage.MarshalRunReport(report)
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetLatestRunReport retrieves the most recently started run report.
// Returns nil, nil if no report exists.
func (r *RunReportRepository) GetLatestRunReport(ctx context.Context) (*core.RunReport, error) {
	reports, err := r.GetRunReports(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return reports[0], nil
}

// GetRunReports retrieves up to limit run reports, newest first.
func (r *RunReportRepository) GetRunReports(ctx context.Context, limit int) ([]*core.RunReport, error) {
	var results []*core.RunReport
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Reverse iteration over start-time keys yields newest first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		startKey := makeRunReportKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))
		prefix := []byte(runReportPrefix + ":")

		count := 0
		for iter.Seek(startKey); iter.Valid() && count < limit; iter.Next() {
			key := iter.Item().Key()

			// Check if we're still in the run report keyspace
			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			var report *core.RunReport
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				report, unmarshalErr = storage.UnmarshalRunReport(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			if report != nil {
				results = append(results, report)
				count++
			}
		}
		return nil
	}, false)

	return results, err
}
