package store

import (
	"context"
	"sort"
	"sync"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
)

// Memory is a Store backed by a map. Records are deep copied on the way in
// and out.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*races.Record
	saves   int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*races.Record)}
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, eventID string) (*races.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[eventID]
	if !ok {
		return nil, notFound(eventID)
	}
	return rec.Clone(), nil
}

// Save implements Store.
func (m *Memory) Save(ctx context.Context, rec *races.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepare(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Event.ExternalID] = rec.Clone()
	m.saves++
	return nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Saves returns the number of successful Save calls.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

// Failing wraps a store and fails every Save. Loads pass through.
type Failing struct {
	Store
	Err error
}

// Save implements Store.
func (f Failing) Save(context.Context, *races.Record) error {
	if f.Err != nil {
		return f.Err
	}
	return errors.New("save rejected")
}
