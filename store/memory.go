package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Store for tests. FailWith, when set, makes every
// call return that error, simulating a transient outage.
type Memory struct {
	mu       sync.Mutex
	entries  []CustodyEntry
	keyRefs  []KeyReference
	emps     []Employee
	nextRow  RowRef
	FailWith error
}

func NewMemory() *Memory {
	return &Memory{nextRow: 1}
}

// SeedKeys replaces the key reference table.
func (m *Memory) SeedKeys(refs ...KeyReference) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyRefs = refs
}

// SeedEmployees replaces the employee table.
func (m *Memory) SeedEmployees(emps ...Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emps = emps
}

func (m *Memory) AppendCustodyEntry(ctx context.Context, e CustodyEntry) (RowRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	e.Row = m.nextRow
	m.nextRow++
	m.entries = append(m.entries, e)
	return e.Row, nil
}

func (m *Memory) ListCustodyEntries(ctx context.Context) ([]CustodyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	out := make([]CustodyEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *Memory) ListOpenCustodyEntries(ctx context.Context) ([]CustodyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	var out []CustodyEntry
	for _, e := range m.entries {
		if e.Open() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) SetReturnedAt(ctx context.Context, ref RowRef, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for i := range m.entries {
		if m.entries[i].Row == ref {
			t := at
			m.entries[i].ReturnedAt = &t
			return nil
		}
	}
	return nil
}

func (m *Memory) ListKeyReferences(ctx context.Context) ([]KeyReference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	out := make([]KeyReference, len(m.keyRefs))
	copy(out, m.keyRefs)
	return out, nil
}

func (m *Memory) ListEmployees(ctx context.Context) ([]Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	out := make([]Employee, len(m.emps))
	copy(out, m.emps)
	return out, nil
}

func (m *Memory) AppendEmployee(ctx context.Context, emp Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.emps = append(m.emps, emp)
	return nil
}
