package chunklog

import (
	"context"
	"sync"
)

// MemoryLog is the in-process Log used by tests and single-process mode.
type MemoryLog struct {
	mu   sync.Mutex
	runs map[string][]Entry
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{runs: map[string][]Entry{}}
}

func (m *MemoryLog) Append(ctx context.Context, run string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Words = append([]Word(nil), entry.Words...)
	m.runs[run] = append(m.runs[run], entry)
	return nil
}

func (m *MemoryLog) Entries(ctx context.Context, run string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.runs[run]))
	copy(out, m.runs[run])
	return out, nil
}

func (m *MemoryLog) Drop(ctx context.Context, run string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, run)
	return nil
}
