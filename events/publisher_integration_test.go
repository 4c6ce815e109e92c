//go:build integration

package events

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/recollect/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("RECOLLECT_NATS_URL")
	if url == "" {
		t.Skip("RECOLLECT_NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PublishRunCompleted(t *testing.T) {
	natsURL := skipWithoutNATS(t)

	publisher, err := Connect(natsURL, slog.Default())
	require.NoError(t, err)
	defer publisher.Close()

	conn, err := nats.Connect(natsURL)
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan RunCompletedEvent, 1)
	sub, err := conn.Subscribe(SubjectRunCompleted, func(msg *nats.Msg) {
		var event RunCompletedEvent
		if err := json.Unmarshal(msg.Data, &event); err == nil {
			received <- event
		}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// Give the subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	publisher.PublishRunCompleted(&core.RunReport{
		RunID:     "integration-run",
		Mode:      "incremental",
		Succeeded: 2,
	})

	select {
	case event := <-received:
		assert.Equal(t, "run.completed", event.Event)
		assert.Equal(t, "integration-run", event.RunID)
		assert.Equal(t, 2, event.Succeeded)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run.completed event")
	}
}
