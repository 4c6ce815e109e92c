// Package thread partitions normalized message streams into conversation
// threads and renders threads into retrievable documents.
//
// Detection is a single-pass fold over time-ordered input with exactly one
// open thread at a time. Tracking one open thread per participant cluster
// would split interleaved topics more precisely; the single-cursor behavior
// is kept deliberately and may under-split such conversations.
package thread
