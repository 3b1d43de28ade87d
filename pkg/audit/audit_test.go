package audit_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/Mindburn-Labs/golive/pkg/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseEvent(t *testing.T, line string) audit.Event {
	t.Helper()
	require.True(t, strings.HasPrefix(line, audit.Prefix), "line %q", line)
	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, audit.Prefix))), &event))
	return event
}

func TestLogger_Record_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	err := logger.Record(context.Background(), audit.EventEvidence, "manifest", "evidence/", nil)
	require.NoError(t, err)

	event := parseEvent(t, buf.String())
	assert.Equal(t, audit.EventEvidence, event.Type)
	assert.Equal(t, "manifest", event.Action)
	assert.Equal(t, "evidence/", event.Resource)
	assert.Equal(t, "system", event.ActorID)
	// UUID format: 8-4-4-4-12
	assert.Len(t, event.ID, 36)
	assert.False(t, event.Timestamp.IsZero())
}

func TestLogger_Record_ActorAndMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	ctx := audit.WithActor(context.Background(), "release-bot")
	meta := map[string]any{"result": "NO_GO"}
	require.NoError(t, logger.Record(ctx, audit.EventDecision, "record-decision", "go_live_decision_log", meta))

	event := parseEvent(t, buf.String())
	assert.Equal(t, "release-bot", event.ActorID)
	assert.Equal(t, "NO_GO", event.Metadata["result"])
}

func TestLogger_ConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = logger.Record(context.Background(), audit.EventNotify, "notify", "ops@example.com", nil)
		}()
	}
	wg.Wait()

	ids := map[string]bool{}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		ids[parseEvent(t, sc.Text()).ID] = true
	}
	assert.Len(t, ids, 20)
}

func TestActorFrom_DefaultsToSystem(t *testing.T) {
	assert.Equal(t, "system", audit.ActorFrom(context.Background()))
	assert.Equal(t, "system", audit.ActorFrom(audit.WithActor(context.Background(), "")))
}

func TestNop(t *testing.T) {
	assert.NoError(t, audit.Nop().Record(context.Background(), audit.EventSystem, "x", "y", nil))
}
