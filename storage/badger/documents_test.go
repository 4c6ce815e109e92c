package badger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

var docTestBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testDocument builds a document whose ID is the real content fingerprint,
// so distinct bodies always produce distinct IDs.
func testDocument(body string, end time.Time, vector []float32) *core.Document {
	meta := core.DocumentMetadata{
		Participants: []string{"Alice", "Bob"},
		MessageCount: 2,
		StartTime:    end.Add(-5 * time.Minute),
		EndTime:      end,
		WordCount:    4,
	}
	return &core.Document{
		ID:       core.Fingerprint(meta, body),
		ThreadID: "thread_20240301_120000_0001",
		Body:     body,
		Metadata: meta,
		Vector:   vector,
	}
}

func TestDocumentBasics(t *testing.T) {
	docRepo, _, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() {
		docRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	doc := testDocument("[2024-03-01T12:00:00Z] Alice: hello", docTestBase, nil)
	if err := docRepo.UpsertDocuments(ctx, doc); err != nil {
		t.Fatalf("Failed to upsert document: %v", err)
	}

	retrieved, err := docRepo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if retrieved.Body != doc.Body {
		t.Fatalf("Expected body %q, got %q", doc.Body, retrieved.Body)
	}
	if retrieved.ThreadID != doc.ThreadID {
		t.Fatalf("Expected thread ID %q, got %q", doc.ThreadID, retrieved.ThreadID)
	}
	if !retrieved.Metadata.EndTime.Equal(doc.Metadata.EndTime) {
		t.Fatalf("Expected end time %v, got %v", doc.Metadata.EndTime, retrieved.Metadata.EndTime)
	}

	found, err := docRepo.HasDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("HasDocument failed: %v", err)
	}
	if !found {
		t.Fatal("Expected document to exist")
	}

	// Unknown ID
	_, err = docRepo.GetDocument(ctx, core.ID(12345))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	found, err = docRepo.HasDocument(ctx, core.ID(12345))
	if err != nil {
		t.Fatalf("HasDocument failed: %v", err)
	}
	if found {
		t.Fatal("Expected document to be absent")
	}
}

func TestUpsertDocuments_Idempotent(t *testing.T) {
	docRepo, _, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()
	doc := testDocument("[2024-03-01T12:00:00Z] Alice: hello", docTestBase, []float32{0.1, 0.2})

	for i := 0; i < 3; i++ {
		if err := docRepo.UpsertDocuments(ctx, doc); err != nil {
			t.Fatalf("Upsert %d failed: %v", i, err)
		}
	}

	count, err := docRepo.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 document after repeated upserts, got %d", count)
	}

	ids, err := docRepo.ListDocumentIDs(ctx)
	if err != nil {
		t.Fatalf("ListDocumentIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != doc.ID {
		t.Fatalf("Expected single ID %d, got %v", doc.ID, ids)
	}
}

func TestListDocumentIDs_OrderedByEndTime(t *testing.T) {
	docRepo, _, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	oldest := testDocument("oldest body", docTestBase, nil)
	middle := testDocument("middle body", docTestBase.Add(1*time.Hour), nil)
	newest := testDocument("newest body", docTestBase.Add(2*time.Hour), nil)

	// Insert out of order
	if err := docRepo.UpsertDocuments(ctx, newest, oldest, middle); err != nil {
		t.Fatalf("Failed to upsert documents: %v", err)
	}

	ids, err := docRepo.ListDocumentIDs(ctx)
	if err != nil {
		t.Fatalf("ListDocumentIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Expected 3 IDs, got %d", len(ids))
	}
	want := []core.ID{oldest.ID, middle.ID, newest.ID}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("Expected ID %d at position %d, got %d", id, i, ids[i])
		}
	}
}

func TestGetRecentDocuments(t *testing.T) {
	docRepo, _, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	docs := []*core.Document{
		testDocument("body one", docTestBase, nil),
		testDocument("body two", docTestBase.Add(1*time.Hour), nil),
		testDocument("body three", docTestBase.Add(2*time.Hour), nil),
		testDocument("body four", docTestBase.Add(3*time.Hour), nil),
		testDocument("body five", docTestBase.Add(4*time.Hour), nil),
	}
	if err := docRepo.UpsertDocuments(ctx, docs...); err != nil {
		t.Fatalf("Failed to upsert documents: %v", err)
	}

	recent, err := docRepo.GetRecentDocuments(ctx, 3)
	if err != nil {
		t.Fatalf("GetRecentDocuments failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 documents, got %d", len(recent))
	}
	if recent[0].Body != "body five" {
		t.Errorf("Expected 'body five' first, got %q", recent[0].Body)
	}
	if recent[1].Body != "body four" {
		t.Errorf("Expected 'body four' second, got %q", recent[1].Body)
	}
	if recent[2].Body != "body three" {
		t.Errorf("Expected 'body three' third, got %q", recent[2].Body)
	}

	all, err := docRepo.GetRecentDocuments(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecentDocuments failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("Expected 5 documents, got %d", len(all))
	}

	none, err := docRepo.GetRecentDocuments(ctx, 0)
	if err != nil {
		t.Fatalf("GetRecentDocuments failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("Expected 0 documents, got %d", len(none))
	}
}

func TestHighWaterMark(t *testing.T) {
	docRepo, _, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	// Empty store has no high-water mark
	_, found, err := docRepo.HighWaterMark(ctx)
	if err != nil {
		t.Fatalf("HighWaterMark failed: %v", err)
	}
	if found {
		t.Fatal("Expected no high-water mark on empty store")
	}

	latest := docTestBase.Add(2 * time.Hour)
	docs := []*core.Document{
		testDocument("early thread", docTestBase, nil),
		testDocument("late thread", latest, nil),
		testDocument("middle thread", docTestBase.Add(1*time.Hour), nil),
	}
	if err := docRepo.UpsertDocuments(ctx, docs...); err != nil {
		t.Fatalf("Failed to upsert documents: %v", err)
	}

	hwm, found, err := docRepo.HighWaterMark(ctx)
	if err != nil {
		t.Fatalf("HighWaterMark failed: %v", err)
	}
	if !found {
		t.Fatal("Expected a high-water mark")
	}
	if !hwm.Equal(latest) {
		t.Fatalf("Expected high-water mark %v, got %v", latest, hwm)
	}
}

func TestScanBodies(t *testing.T) {
	docRepo, _, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	docs := []*core.Document{
		testDocument("alpha body", docTestBase, nil),
		testDocument("beta body", docTestBase.Add(1*time.Hour), nil),
		testDocument("gamma body", docTestBase.Add(2*time.Hour), nil),
	}
	if err := docRepo.UpsertDocuments(ctx, docs...); err != nil {
		t.Fatalf("Failed to upsert documents: %v", err)
	}

	seen := make(map[core.ID]string)
	err = docRepo.ScanBodies(ctx, func(id core.ID, body string) error {
		seen[id] = body
		return nil
	})
	if err != nil {
		t.Fatalf("ScanBodies failed: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("Expected 3 bodies, got %d", len(seen))
	}
	for _, doc := range docs {
		if seen[doc.ID] != doc.Body {
			t.Fatalf("Expected body %q for ID %d, got %q", doc.Body, doc.ID, seen[doc.ID])
		}
	}

	// Errors from fn stop the scan and propagate
	scanErr := errors.New("stop")
	calls := 0
	err = docRepo.ScanBodies(ctx, func(id core.ID, body string) error {
		calls++
		return scanErr
	})
	if !errors.Is(err, scanErr) {
		t.Fatalf("Expected scan error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("Expected scan to stop after first error, got %d calls", calls)
	}
}

func TestDeleteAllDocuments(t *testing.T) {
	docRepo, runRepo, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	docs := []*core.Document{
		testDocument("first body", docTestBase, []float32{0.5}),
		testDocument("second body", docTestBase.Add(1*time.Hour), []float32{0.5}),
	}
	if err := docRepo.UpsertDocuments(ctx, docs...); err != nil {
		t.Fatalf("Failed to upsert documents: %v", err)
	}

	report := core.NewRunReport("full", "")
	report.StartedAt = docTestBase
	if err := runRepo.SaveRunReport(ctx, report); err != nil {
		t.Fatalf("Failed to save run report: %v", err)
	}

	if err := docRepo.DeleteAllDocuments(ctx); err != nil {
		t.Fatalf("DeleteAllDocuments failed: %v", err)
	}

	count, err := docRepo.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 documents after delete, got %d", count)
	}

	_, found, err := docRepo.HighWaterMark(ctx)
	if err != nil {
		t.Fatalf("HighWaterMark failed: %v", err)
	}
	if found {
		t.Fatal("Expected no high-water mark after delete")
	}

	// Run history survives a document wipe
	latest, err := runRepo.GetLatestRunReport(ctx)
	if err != nil {
		t.Fatalf("GetLatestRunReport failed: %v", err)
	}
	if latest == nil || latest.RunID != report.RunID {
		t.Fatal("Expected run report to survive document wipe")
	}
}

func TestBackup(t *testing.T) {
	docRepo, _, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	doc := testDocument("backup body", docTestBase, []float32{0.1, 0.2, 0.3})
	if err := docRepo.UpsertDocuments(ctx, doc); err != nil {
		t.Fatalf("Failed to upsert document: %v", err)
	}

	var buf bytes.Buffer
	version, err := docRepo.Backup(ctx, &buf)
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if version == 0 {
		t.Fatal("Expected non-zero backup version")
	}
	if buf.Len() == 0 {
		t.Fatal("Expected backup stream to contain data")
	}
}
