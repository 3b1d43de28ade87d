package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return http.StatusBadGateway, s.err
	}
	s.sent = append(s.sent, msg)
	return http.StatusAccepted, nil
}

func TestNotifier_SuppressesDuplicates(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, WithDeduper(NewMemoryDeduper(time.Hour)))
	ctx := context.Background()

	code, err := n.Notify(ctx, resultMsg)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, code)

	_, err = n.Notify(ctx, resultMsg)
	assert.ErrorIs(t, err, ErrDuplicate)

	other := resultMsg
	other.Body = "result: NO_GO"
	_, err = n.Notify(ctx, other)
	require.NoError(t, err)

	assert.Len(t, sender.sent, 2)
}

func TestNotifier_ConcurrentDuplicatesSendOnce(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, WithDeduper(NewMemoryDeduper(time.Hour)))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = n.Notify(context.Background(), resultMsg)
		}()
	}
	wg.Wait()
	assert.Len(t, sender.sent, 1)
}

func TestNotifier_FailureReleasesClaim(t *testing.T) {
	sender := &recordingSender{err: errors.New("provider down")}
	dedupe := NewMemoryDeduper(time.Hour)
	n := NewNotifier(sender, WithDeduper(dedupe))
	ctx := context.Background()

	code, err := n.Notify(ctx, resultMsg)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, code)

	sender.err = nil
	_, err = n.Notify(ctx, resultMsg)
	require.NoError(t, err)
	assert.Len(t, sender.sent, 1)
}

func TestNotifier_InvalidMessageNotClaimed(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, WithDeduper(NewMemoryDeduper(time.Hour)))
	_, err := n.Notify(context.Background(), Message{Recipient: "nobody", Subject: "s"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Empty(t, sender.sent)
}

func TestNotifier_RateLimitHonoursContext(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, WithRateLimit(0.001, 1))

	_, err := n.Notify(context.Background(), resultMsg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := resultMsg
	second.Body = "again"
	_, err = n.Notify(ctx, second)
	assert.Error(t, err)
	assert.Len(t, sender.sent, 1)
}

func TestWriterSender(t *testing.T) {
	var buf bytes.Buffer
	code, err := (&WriterSender{W: &buf}).Send(context.Background(), resultMsg)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, buf.String(), "Subject: Go-Live Validation Result")
}

func TestMemoryDeduper_Expiry(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	now := time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)
	d.clock = func() time.Time { return now }
	ctx := context.Background()

	ok, err := d.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = d.Claim(ctx, "k")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = d.Claim(ctx, "k")
	assert.True(t, ok)
}

// TestRedisDeduper_Integration requires a running Redis.
// We skip if connection fails.
func TestRedisDeduper_Integration(t *testing.T) {
	d := NewRedisDeduper("localhost:6379", "", 0, time.Minute)
	defer func() { _ = d.Close() }()
	ctx := context.Background()
	if err := d.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	key := "test-" + resultMsg.Key()
	_ = d.Release(ctx, key)

	ok, err := d.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Release(ctx, key))
	ok, err = d.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	_ = d.Release(ctx, key)
}
