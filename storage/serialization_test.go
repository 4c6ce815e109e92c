package storage

import (
	"testing"
	"time"

	"github.com/poiesic/recollect/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)

	doc := &core.Document{
		ThreadID: "thread_20240301_120000_0001",
		Body:     "[2024-03-01T12:00:00Z] Alice: does anyone know if the deploy went out?",
		Metadata: core.DocumentMetadata{
			Participants: []string{"Alice", "Bob"},
			MessageCount: 2,
			StartTime:    start,
			EndTime:      end,
			SourceChat:   "ops-team",
			WordCount:    12,
			HasQuestions: true,
			HasLinks:     false,
			HasService:   false,
		},
		Vector: []float32{0.1, -0.2, 0.3, 0.4},
	}
	doc.ID = core.Fingerprint(doc.Metadata, doc.Body)

	data := MarshalDocument(doc)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalDocument(data)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.Equal(t, doc.ID, decoded.ID)
	assert.Equal(t, doc.ThreadID, decoded.ThreadID)
	assert.Equal(t, doc.Body, decoded.Body)
	assert.Equal(t, doc.Metadata.Participants, decoded.Metadata.Participants)
	assert.Equal(t, doc.Metadata.MessageCount, decoded.Metadata.MessageCount)
	assert.True(t, doc.Metadata.StartTime.Equal(decoded.Metadata.StartTime))
	assert.True(t, doc.Metadata.EndTime.Equal(decoded.Metadata.EndTime))
	assert.Equal(t, doc.Metadata.SourceChat, decoded.Metadata.SourceChat)
	assert.Equal(t, doc.Metadata.WordCount, decoded.Metadata.WordCount)
	assert.Equal(t, doc.Metadata.HasQuestions, decoded.Metadata.HasQuestions)
	assert.Equal(t, doc.Metadata.HasLinks, decoded.Metadata.HasLinks)
	assert.Equal(t, doc.Metadata.HasService, decoded.Metadata.HasService)
	assert.Equal(t, doc.Vector, decoded.Vector)
}

func TestMarshalUnmarshalDocument_NoVector(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := &core.Document{
		ID:       core.ID(7),
		ThreadID: "thread_20240301_120000_0001",
		Body:     "[2024-03-01T12:00:00Z] Alice: hello 世界 🌍",
		Metadata: core.DocumentMetadata{
			Participants: []string{"Alice"},
			MessageCount: 1,
			StartTime:    start,
			EndTime:      start,
			WordCount:    3,
		},
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc.Body, decoded.Body)
	assert.Empty(t, decoded.Vector)
	assert.Empty(t, decoded.Metadata.SourceChat)
}

func TestUnmarshalDocument_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated data", []byte{0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDocument(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalRunReport(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	report := &core.RunReport{
		RunID:             "2f5cfe63-70f8-4c6d-9f43-1a2b3c4d5e6f",
		Mode:              "incremental",
		SourceTag:         "ops-team",
		StartedAt:         started,
		FinishedAt:        started.Add(42 * time.Second),
		MessagesTotal:     1200,
		MessagesDropped:   3,
		ThreadsDetected:   41,
		DocumentsEligible: 12,
		DocumentsSkipped:  29,
		Attempted:         12,
		Succeeded:         11,
		Failed:            1,
		OrderingWarnings:  2,
		Errors: []core.IngestError{
			{DocumentID: core.ID(99), Reason: "embedding failed after 3 attempts"},
		},
	}

	decoded, err := UnmarshalRunReport(MarshalRunReport(report))
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Equal(t, report.Mode, decoded.Mode)
	assert.Equal(t, report.SourceTag, decoded.SourceTag)
	assert.True(t, report.StartedAt.Equal(decoded.StartedAt))
	assert.True(t, report.FinishedAt.Equal(decoded.FinishedAt))
	assert.Equal(t, report.MessagesTotal, decoded.MessagesTotal)
	assert.Equal(t, report.MessagesDropped, decoded.MessagesDropped)
	assert.Equal(t, report.ThreadsDetected, decoded.ThreadsDetected)
	assert.Equal(t, report.DocumentsEligible, decoded.DocumentsEligible)
	assert.Equal(t, report.DocumentsSkipped, decoded.DocumentsSkipped)
	assert.Equal(t, report.Attempted, decoded.Attempted)
	assert.Equal(t, report.Succeeded, decoded.Succeeded)
	assert.Equal(t, report.Failed, decoded.Failed)
	assert.Equal(t, report.OrderingWarnings, decoded.OrderingWarnings)
	assert.Equal(t, report.Errors, decoded.Errors)
}

func TestUnmarshalRunReport_Invalid(t *testing.T) {
	_, err := UnmarshalRunReport([]byte{0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestRoundTripConsistency(t *testing.T) {
	t.Run("multiple marshal-unmarshal cycles", func(t *testing.T) {
		start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		original := &core.Document{
			ID:       core.ID(999),
			ThreadID: "thread_20240301_120000_0001",
			Body:     "[2024-03-01T12:00:00Z] Alice: testing consistency",
			Metadata: core.DocumentMetadata{
				Participants: []string{"Alice"},
				MessageCount: 1,
				StartTime:    start,
				EndTime:      start,
				WordCount:    2,
			},
			Vector: []float32{0.1, 0.2, 0.3},
		}

		current := original
		for i := 0; i < 3; i++ {
			decoded, err := UnmarshalDocument(MarshalDocument(current))
			require.NoError(t, err)
			current = decoded
		}

		assert.Equal(t, original.ID, current.ID)
		assert.Equal(t, original.Body, current.Body)
		assert.Equal(t, original.Metadata.Participants, current.Metadata.Participants)
		assert.Equal(t, original.Vector, current.Vector)
	})
}
