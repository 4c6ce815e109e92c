package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
	"github.com/poiesic/recollect/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportPayload(t *testing.T, export *telegram.Export) *bytes.Reader {
	t.Helper()
	payload, err := json.Marshal(export)
	require.NoError(t, err)
	return bytes.NewReader(payload)
}

func setupTestCoordinator(t *testing.T, dbPath string) (*Coordinator, storage.DocumentRepository) {
	t.Helper()
	store, cleanup := setupTestStore(t)
	t.Cleanup(cleanup)

	provider := &testProvider{embedder: &testEmbedder{}, generator: &testGenerator{}}
	pipeline, err := NewPipeline(store, provider,
		WithOrchestratorOptions(WithBaseDelay(time.Millisecond)))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	coordinator, err := NewCoordinator(pipeline, store, dbPath)
	require.NoError(t, err)

	return coordinator, store
}

func TestNewCoordinator_Validation(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	provider := &testProvider{embedder: &testEmbedder{}, generator: &testGenerator{}}
	pipeline, err := NewPipeline(store, provider)
	require.NoError(t, err)
	defer pipeline.Release()

	t.Run("nil pipeline", func(t *testing.T) {
		c, err := NewCoordinator(nil, store, "")
		assert.Nil(t, c)
		assert.Error(t, err)
	})

	t.Run("nil store", func(t *testing.T) {
		c, err := NewCoordinator(pipeline, nil, "")
		assert.Nil(t, c)
		assert.ErrorIs(t, err, ErrStoreRequired)
	})
}

func TestParseUploadMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    UploadMode
		wantErr bool
	}{
		{"empty defaults to merge", "", UploadMerge, false},
		{"merge", "merge", UploadMerge, false},
		{"replace", "replace", UploadReplace, false},
		{"ingestion modes are not upload modes", "full", "", true},
		{"unknown mode", "sideways", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := ParseUploadMode(tt.input)
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

func TestCoordinatorApplyUpload_InvalidPayloadFailsFast(t *testing.T) {
	coordinator, store := setupTestCoordinator(t, "")
	ctx := context.Background()

	t.Run("not an object", func(t *testing.T) {
		outcome, err := coordinator.ApplyUpload(ctx, strings.NewReader("[1, 2, 3]"), UploadOptions{})
		assert.Nil(t, outcome)
		assert.ErrorIs(t, err, core.ErrInvalidExport)
	})

	t.Run("missing messages", func(t *testing.T) {
		outcome, err := coordinator.ApplyUpload(ctx, strings.NewReader(`{"name": "chat"}`), UploadOptions{})
		assert.Nil(t, outcome)
		assert.ErrorIs(t, err, core.ErrMissingMessages)
	})

	count, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "rejected uploads leave the store untouched")
}

func TestCoordinatorApplyUpload_MergeDeduplicates(t *testing.T) {
	coordinator, store := setupTestCoordinator(t, "")
	ctx := context.Background()

	first, err := coordinator.ApplyUpload(ctx, exportPayload(t, twoThreadExport()),
		UploadOptions{Mode: UploadMerge, SourceTag: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, UploadMerge, first.Mode)
	assert.Empty(t, first.BackupPath)
	require.NotNil(t, first.Report)
	assert.Equal(t, 2, first.Report.Succeeded)
	assert.Equal(t, "alpha", first.Report.SourceTag)

	second, err := coordinator.ApplyUpload(ctx, exportPayload(t, twoThreadExport()),
		UploadOptions{Mode: UploadMerge, SourceTag: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Report.DocumentsSkipped)
	assert.Equal(t, 0, second.Report.Attempted)

	count, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCoordinatorApplyUpload_DefaultsToMerge(t *testing.T) {
	coordinator, _ := setupTestCoordinator(t, "")

	outcome, err := coordinator.ApplyUpload(context.Background(),
		exportPayload(t, twoThreadExport()), UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, UploadMerge, outcome.Mode)
	assert.Equal(t, "incremental", outcome.Report.Mode)
}

func TestCoordinatorApplyUpload_ReplaceClearsAndBacksUp(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "recollect.db")
	coordinator, store := setupTestCoordinator(t, dbPath)
	ctx := context.Background()

	_, err := coordinator.ApplyUpload(ctx, exportPayload(t, twoThreadExport()),
		UploadOptions{Mode: UploadMerge, SourceTag: "alpha"})
	require.NoError(t, err)

	oldIDs, err := store.ListDocumentIDs(ctx)
	require.NoError(t, err)
	require.Len(t, oldIDs, 2)

	replacement := testExport(
		exportMessage(1, ingestTestBase.Add(3*time.Hour), "Carol", "user3", "starting fresh"),
		exportMessage(2, ingestTestBase.Add(3*time.Hour+time.Minute), "Dave", "user4", "clean slate"),
	)

	outcome, err := coordinator.ApplyUpload(ctx, exportPayload(t, replacement),
		UploadOptions{Mode: UploadReplace, SourceTag: "beta"})
	require.NoError(t, err)

	assert.Equal(t, UploadReplace, outcome.Mode)
	assert.Equal(t, "full", outcome.Report.Mode)
	assert.Equal(t, 1, outcome.Report.Succeeded)

	require.NotEmpty(t, outcome.BackupPath)
	assert.True(t, strings.HasPrefix(outcome.BackupPath, dbPath), "backup lands next to the database")
	assert.True(t, strings.HasSuffix(outcome.BackupPath, ".backup"))

	info, err := os.Stat(outcome.BackupPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), "backup holds the pre-replace corpus")

	count, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	for _, id := range oldIDs {
		has, err := store.HasDocument(ctx, id)
		require.NoError(t, err)
		assert.False(t, has, "replace removes the previous corpus")
	}
}

func TestCoordinatorApplyUpload_ReplaceWithoutDBPathSkipsBackup(t *testing.T) {
	coordinator, store := setupTestCoordinator(t, "")
	ctx := context.Background()

	_, err := coordinator.ApplyUpload(ctx, exportPayload(t, twoThreadExport()),
		UploadOptions{Mode: UploadMerge})
	require.NoError(t, err)

	outcome, err := coordinator.ApplyUpload(ctx, exportPayload(t, twoThreadExport()),
		UploadOptions{Mode: UploadReplace})
	require.NoError(t, err)

	assert.Empty(t, outcome.BackupPath, "in-memory stores have nowhere to back up to")
	assert.Equal(t, 2, outcome.Report.Succeeded)

	count, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCoordinatorApplyUpload_UnknownMode(t *testing.T) {
	coordinator, _ := setupTestCoordinator(t, "")

	outcome, err := coordinator.ApplyUpload(context.Background(),
		exportPayload(t, twoThreadExport()), UploadOptions{Mode: "sideways"})
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, ErrInvalidMode)
}
