package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/recollect/core"
)

// Key prefixes for different data types
const (
	documentPrefix        = "docrec"
	documentEndTimePrefix = "docrect"
	runReportPrefix       = "runrep"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentEndTimeKey generates a composite key for the end-time index.
// Format: prefix:endTime:id
func makeDocumentEndTimeKey(endTime time.Time, id core.ID) []byte {
	prefix := documentEndTimePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for timestamp + 8 bytes for ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(endTime.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialDocumentEndTimeKey generates a partial key for end-time scans.
// Format: prefix:endTime
func makePartialDocumentEndTimeKey(endTime time.Time) []byte {
	prefix := documentEndTimePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for timestamp
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(endTime.UnixMicro()))
	return buf
}

// makeRunReportKey generates a key for a run report by its start time.
// Format: prefix:startedAt
func makeRunReportKey(startedAt time.Time) []byte {
	prefix := runReportPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for timestamp
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(startedAt.UnixMicro()))
	return buf
}
