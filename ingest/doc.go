// Package ingest turns parsed chat exports into embedded, stored documents.
//
// The Pipeline type composes the full flow: normalize raw export records,
// detect conversation threads, assemble retrievable documents, select which
// documents an incremental run still needs, then embed and upsert them in
// concurrent batches via the Orchestrator.
//
// Selection is stateless by construction: LoadState derives the incremental
// view (high-water mark plus known fingerprints) from the store itself, so
// committed upserts are the only state updates and crash replay is safe.
//
// The Coordinator applies uploaded exports on top of an existing corpus,
// either merging incrementally or replacing after a streamed backup.
//
// Failures are isolated per batch: a batch that exhausts its retry budget
// marks its documents failed in the run report and the run continues.
package ingest
