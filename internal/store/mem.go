package store

import "sync"

// MemKV is an in-memory KV for tests. It survives "reboots" in a test by
// being handed to the next orchestrator instance.
type MemKV struct {
	mu   sync.Mutex
	data map[string][]byte

	// GetError, SetError and EraseError, if set, are returned by the
	// matching operations.
	GetError   error
	SetError   error
	EraseError error

	// Writes counts successful Set calls.
	Writes int
}

// NewMemKV creates an empty MemKV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemKV) Set(key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetError != nil {
		return m.SetError
	}
	m.data[key] = append([]byte(nil), blob...)
	m.Writes++
	return nil
}

func (m *MemKV) Erase(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EraseError != nil {
		return m.EraseError
	}
	delete(m.data, key)
	return nil
}

func (m *MemKV) EraseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EraseError != nil {
		return m.EraseError
	}
	m.data = make(map[string][]byte)
	return nil
}

func (m *MemKV) Close() error { return nil }

// Keys returns the number of stored keys.
func (m *MemKV) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Raw returns the stored blob for key without error injection.
func (m *MemKV) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}
