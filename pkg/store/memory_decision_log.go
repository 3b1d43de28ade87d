package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDecisionLog is an in-process DecisionLog for dry runs and tests.
// It exposes no mutation API, so it is immutable and freeze is always
// enforced.
type MemoryDecisionLog struct {
	mu      sync.RWMutex
	records []DecisionRecord
	head    string
	frozen  bool
	clock   func() time.Time
}

func NewMemoryDecisionLog() *MemoryDecisionLog {
	return &MemoryDecisionLog{
		records: make([]DecisionRecord, 0),
		head:    GenesisHash,
		clock:   time.Now,
	}
}

func (m *MemoryDecisionLog) Append(_ context.Context, rec DecisionRecord) (DecisionRecord, error) {
	if err := validateRecord(rec); err != nil {
		return DecisionRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return DecisionRecord{}, ErrFrozen
	}

	rec.Sequence = int64(len(m.records)) + 1
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = m.clock().UTC().Truncate(time.Microsecond)
	rec.PrevHash = m.head

	hash, err := ComputeRecordHash(rec)
	if err != nil {
		return DecisionRecord{}, err
	}
	rec.RecordHash = hash
	m.head = hash
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *MemoryDecisionLog) List(_ context.Context) ([]DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DecisionRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *MemoryDecisionLog) Immutable(context.Context) (bool, error)      { return true, nil }
func (m *MemoryDecisionLog) FreezeEnforced(context.Context) (bool, error) { return true, nil }

func (m *MemoryDecisionLog) FreezeActive(context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frozen, nil
}

func (m *MemoryDecisionLog) SetFreeze(_ context.Context, active bool) error {
	m.mu.Lock()
	m.frozen = active
	m.mu.Unlock()
	return nil
}

func (m *MemoryDecisionLog) Close() error { return nil }
