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

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

// Mode selects how much of the input an ingestion run processes.
type Mode string

const (
	// ModeIncremental ingests only documents the store does not already
	// cover: newer than the high-water mark or with unknown fingerprints.
	ModeIncremental Mode = "incremental"

	// ModeFull ingests every document regardless of stored state.
	ModeFull Mode = "full"
)

// ParseMode maps a user-supplied mode string to a Mode.
// Empty defaults to incremental; "force" is accepted as an alias for full
// since that is what a forced re-embed of the corpus means.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeIncremental):
		return ModeIncremental, nil
	case string(ModeFull), "force":
		return ModeFull, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// LoadState builds the incremental-selection state from the store. The store
// is the ground truth: committed upserts are the only thing that advances
// the state, so there is no separate cache to drift.
func LoadState(ctx context.Context, store storage.DocumentRepository) (*core.IngestionState, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	ids, err := store.ListDocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list document ids: %w", err)
	}

	hwm, ok, err := store.HighWaterMark(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read high-water mark: %w", err)
	}

	known := make(map[core.ID]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}

	return &core.IngestionState{
		HighWaterMark:     hwm,
		HasHighWaterMark:  ok,
		KnownFingerprints: known,
	}, nil
}

// SelectForIngestion partitions documents into those an ingestion run should
// process and those it may skip. Pure: neither input slice element nor state
// is mutated.
//
// ModeFull marks everything eligible. ModeIncremental marks a document
// eligible when its end time is after the high-water mark OR its fingerprint
// is unknown; the double condition covers both appended messages and edits
// to historical threads without rehashing the whole corpus.
func SelectForIngestion(docs []core.Document, state *core.IngestionState, mode Mode) (eligible, skipped []core.Document) {
	if mode == ModeFull || state == nil {
		return docs, nil
	}

	eligible = make([]core.Document, 0, len(docs))
	for _, doc := range docs {
		afterMark := state.HasHighWaterMark && doc.Metadata.EndTime.After(state.HighWaterMark)
		if afterMark || !state.Knows(doc.ID) {
			eligible = append(eligible, doc)
			continue
		}
		skipped = append(skipped, doc)
	}
	return eligible, skipped
}
