package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
	"github.com/poiesic/recollect/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ingestTestBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testDoc builds a document whose ID is the real content fingerprint,
// so distinct bodies always produce distinct IDs.
func testDoc(body string, end time.Time) core.Document {
	meta := core.DocumentMetadata{
		Participants: []string{"Alice", "Bob"},
		MessageCount: 2,
		StartTime:    end.Add(-5 * time.Minute),
		EndTime:      end,
	}
	return core.Document{
		ID:       core.Fingerprint(meta, body),
		ThreadID: "thread_20240301_120000_0001",
		Body:     body,
		Metadata: meta,
	}
}

func setupTestStore(t *testing.T) (storage.DocumentRepository, func()) {
	t.Helper()
	docRepo, _, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	return docRepo, func() {
		docRepo.Close()
		backend.Close()
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"empty defaults to incremental", "", ModeIncremental, false},
		{"incremental", "incremental", ModeIncremental, false},
		{"full", "full", ModeFull, false},
		{"force is an alias for full", "force", ModeFull, false},
		{"unknown mode", "replace", "", true},
		{"case sensitive", "INCREMENTAL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestLoadState_NilStore(t *testing.T) {
	state, err := LoadState(context.Background(), nil)
	assert.Nil(t, state)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestLoadState_EmptyStore(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	state, err := LoadState(context.Background(), store)
	require.NoError(t, err)

	assert.False(t, state.HasHighWaterMark)
	assert.Empty(t, state.KnownFingerprints)
	assert.False(t, state.Knows(core.ID(42)))
}

func TestLoadState_PopulatedStore(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	older := testDoc("[2024-03-01T11:55:00Z] Alice: morning", ingestTestBase)
	newer := testDoc("[2024-03-01T12:55:00Z] Bob: afternoon", ingestTestBase.Add(time.Hour))
	require.NoError(t, store.UpsertDocuments(ctx, &older, &newer))

	state, err := LoadState(ctx, store)
	require.NoError(t, err)

	assert.True(t, state.HasHighWaterMark)
	assert.True(t, state.HighWaterMark.Equal(newer.Metadata.EndTime),
		"high-water mark should be the latest stored end time")
	assert.Len(t, state.KnownFingerprints, 2)
	assert.True(t, state.Knows(older.ID))
	assert.True(t, state.Knows(newer.ID))
	assert.False(t, state.Knows(core.ID(42)))
}

func TestSelectForIngestion_FullMode(t *testing.T) {
	docs := []core.Document{
		testDoc("first", ingestTestBase),
		testDoc("second", ingestTestBase.Add(time.Hour)),
	}
	state := &core.IngestionState{
		HighWaterMark:     ingestTestBase.Add(2 * time.Hour),
		HasHighWaterMark:  true,
		KnownFingerprints: map[core.ID]struct{}{docs[0].ID: {}, docs[1].ID: {}},
	}

	eligible, skipped := SelectForIngestion(docs, state, ModeFull)
	assert.Len(t, eligible, 2, "full mode ignores stored state")
	assert.Empty(t, skipped)
}

func TestSelectForIngestion_NilState(t *testing.T) {
	docs := []core.Document{testDoc("only", ingestTestBase)}

	eligible, skipped := SelectForIngestion(docs, nil, ModeIncremental)
	assert.Len(t, eligible, 1)
	assert.Empty(t, skipped)
}

func TestSelectForIngestion_EmptyState(t *testing.T) {
	docs := []core.Document{
		testDoc("first", ingestTestBase),
		testDoc("second", ingestTestBase.Add(time.Hour)),
	}
	state := &core.IngestionState{KnownFingerprints: map[core.ID]struct{}{}}

	eligible, skipped := SelectForIngestion(docs, state, ModeIncremental)
	assert.Len(t, eligible, 2, "empty store makes everything eligible")
	assert.Empty(t, skipped)
}

func TestSelectForIngestion_Incremental(t *testing.T) {
	known := testDoc("known and old", ingestTestBase)
	knownNewer := testDoc("known but past the mark", ingestTestBase.Add(2*time.Hour))
	unknownOld := testDoc("edited history", ingestTestBase.Add(-time.Hour))
	unknownNew := testDoc("fresh conversation", ingestTestBase.Add(3*time.Hour))

	state := &core.IngestionState{
		HighWaterMark:    ingestTestBase.Add(time.Hour),
		HasHighWaterMark: true,
		KnownFingerprints: map[core.ID]struct{}{
			known.ID:      {},
			knownNewer.ID: {},
		},
	}

	docs := []core.Document{known, knownNewer, unknownOld, unknownNew}
	eligible, skipped := SelectForIngestion(docs, state, ModeIncremental)

	require.Len(t, skipped, 1)
	assert.Equal(t, known.ID, skipped[0].ID, "only known documents at or before the mark are skipped")

	require.Len(t, eligible, 3)
	ids := make(map[core.ID]bool, len(eligible))
	for _, d := range eligible {
		ids[d.ID] = true
	}
	assert.True(t, ids[knownNewer.ID], "end time past the mark re-ingests even known fingerprints")
	assert.True(t, ids[unknownOld.ID], "unknown fingerprint before the mark catches edited history")
	assert.True(t, ids[unknownNew.ID])
}

func TestSelectForIngestion_BoundaryEndTime(t *testing.T) {
	atMark := testDoc("exactly at the mark", ingestTestBase)
	state := &core.IngestionState{
		HighWaterMark:     ingestTestBase,
		HasHighWaterMark:  true,
		KnownFingerprints: map[core.ID]struct{}{atMark.ID: {}},
	}

	eligible, skipped := SelectForIngestion([]core.Document{atMark}, state, ModeIncremental)
	assert.Empty(t, eligible, "end time equal to the mark is not after it")
	assert.Len(t, skipped, 1)
}

func TestSelectForIngestion_DoesNotMutate(t *testing.T) {
	docs := []core.Document{
		testDoc("first", ingestTestBase),
		testDoc("second", ingestTestBase.Add(time.Hour)),
	}
	state := &core.IngestionState{
		HighWaterMark:     ingestTestBase.Add(30 * time.Minute),
		HasHighWaterMark:  true,
		KnownFingerprints: map[core.ID]struct{}{docs[0].ID: {}},
	}

	SelectForIngestion(docs, state, ModeIncremental)

	assert.Len(t, state.KnownFingerprints, 1, "selection must not grow the state")
	assert.True(t, state.HighWaterMark.Equal(ingestTestBase.Add(30*time.Minute)))
}
