package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 12, 9, 30, 0, 123456789, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestMemoryDecisionLog_AppendChains(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryDecisionLog()
	log.clock = fixedClock

	first, err := log.Append(ctx, DecisionRecord{DecisionHash: "d1", Result: ResultGo})
	require.NoError(t, err)
	second, err := log.Append(ctx, DecisionRecord{DecisionHash: "d2", Result: ResultNoGo})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, GenesisHash, first.PrevHash)
	assert.Equal(t, first.RecordHash, second.PrevHash)
	assert.Equal(t, fixedNow.Truncate(time.Microsecond), first.CreatedAt)
	assert.NotEmpty(t, first.ID)

	require.NoError(t, Verify(ctx, log))
}

func TestMemoryDecisionLog_Freeze(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryDecisionLog()

	require.NoError(t, log.SetFreeze(ctx, true))
	active, err := log.FreezeActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = log.Append(ctx, DecisionRecord{DecisionHash: "d1", Result: ResultGo})
	assert.ErrorIs(t, err, ErrFrozen)

	require.NoError(t, log.SetFreeze(ctx, false))
	_, err = log.Append(ctx, DecisionRecord{DecisionHash: "d1", Result: ResultGo})
	assert.NoError(t, err)
}

func TestAppend_RejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryDecisionLog()

	_, err := log.Append(ctx, DecisionRecord{Result: ResultGo})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = log.Append(ctx, DecisionRecord{DecisionHash: "d1", Result: "MAYBE"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryDecisionLog()
	for _, h := range []string{"d1", "d2", "d3"} {
		_, err := log.Append(ctx, DecisionRecord{DecisionHash: h, Result: ResultGo})
		require.NoError(t, err)
	}
	good, err := log.List(ctx)
	require.NoError(t, err)
	require.NoError(t, VerifyChain(good))

	tests := []struct {
		name   string
		tamper func([]DecisionRecord)
	}{
		{"changed result", func(r []DecisionRecord) { r[1].Result = ResultNoGo }},
		{"changed decision hash", func(r []DecisionRecord) { r[0].DecisionHash = "dX" }},
		{"broken link", func(r []DecisionRecord) { r[2].PrevHash = GenesisHash }},
		{"renumbered", func(r []DecisionRecord) { r[2].Sequence = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]DecisionRecord, len(good))
			copy(records, good)
			tt.tamper(records)
			err := VerifyChain(records)
			assert.True(t, errors.Is(err, ErrChainBroken), "got %v", err)
		})
	}

	t.Run("dropped record", func(t *testing.T) {
		records := []DecisionRecord{good[0], good[2]}
		assert.ErrorIs(t, VerifyChain(records), ErrChainBroken)
	})
}

func TestComputeRecordHash_IgnoresRecordHash(t *testing.T) {
	rec := DecisionRecord{Sequence: 1, ID: "a", CreatedAt: fixedNow, DecisionHash: "d", Result: ResultGo, PrevHash: GenesisHash}
	h1, err := ComputeRecordHash(rec)
	require.NoError(t, err)
	rec.RecordHash = "anything"
	h2, err := ComputeRecordHash(rec)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}
