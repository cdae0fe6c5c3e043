package store

import (
	"sync"

	"kvmux/internal/wire"
)

// Memory is the in-memory engine: a map of tables, each table a
// concurrently-guarded map from key to Value. Reads take no exclusive
// section; writes lock only the single table shard being mutated.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*shard
}

type shard struct {
	mu   sync.RWMutex
	data map[string]wire.Value
}

// NewMemory returns an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*shard)}
}

func (m *Memory) shardFor(table string, create bool) *shard {
	m.mu.RLock()
	s, ok := m.tables[table]
	m.mu.RUnlock()
	if ok || !create {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.tables[table]; ok {
		return s
	}
	s = &shard{data: make(map[string]wire.Value)}
	m.tables[table] = s
	return s
}

func (m *Memory) Get(table, key string) (wire.Value, bool, error) {
	s := m.shardFor(table, false)
	if s == nil {
		return wire.Value{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (m *Memory) Set(table, key string, value wire.Value) (wire.Value, bool, error) {
	s := m.shardFor(table, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data[key]
	s.data[key] = value
	return prev, had, nil
}

func (m *Memory) Contains(table, key string) (bool, error) {
	s := m.shardFor(table, false)
	if s == nil {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

func (m *Memory) Del(table, key string) (wire.Value, bool, error) {
	s := m.shardFor(table, false)
	if s == nil {
		return wire.Value{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data[key]
	if had {
		delete(s.data, key)
	}
	return prev, had, nil
}

func (m *Memory) GetAll(table string) ([]wire.KvPair, error) {
	s := m.shardFor(table, false)
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pairs := make([]wire.KvPair, 0, len(s.data))
	for k, v := range s.data {
		pairs = append(pairs, wire.KvPair{Key: k, Value: v})
	}
	return pairs, nil
}

func (m *Memory) GetIter(table string) (Iterator, error) {
	pairs, err := m.GetAll(table)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{pairs: pairs}, nil
}

func (m *Memory) Close() error { return nil }
