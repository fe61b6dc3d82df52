package storage

import (
	"fmt"
	"sync"
)

// Memory is an in-memory Store for tests. Committed state is inspectable via
// Committed, and failures can be injected per namespace.
type Memory struct {
	mu        sync.Mutex
	committed map[string]map[string][]byte

	// SetErr, if set, is returned by every SetU32/SetString.
	SetErr error

	// CommitErr, if set, is returned by every Commit. Buffered writes are
	// kept so a later Commit can succeed, mirroring a transient I/O failure.
	CommitErr error

	// Closed tracks if Close was called on the store.
	Closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{committed: make(map[string]map[string][]byte)}
}

// Open returns a handle on the named namespace.
func (m *Memory) Open(namespace string) (Namespace, error) {
	m.mu.Lock()
	if _, ok := m.committed[namespace]; !ok {
		m.committed[namespace] = make(map[string][]byte)
	}
	m.mu.Unlock()
	return &memoryNamespace{store: m, namespace: namespace}, nil
}

// Close marks the store as closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// CommittedU32 returns the durably committed value for a key, for assertions.
func (m *Memory) CommittedU32(namespace, key string) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.committed[namespace][key]
	if !ok || len(v) != 4 {
		return 0, false
	}
	return uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3]), true
}

// CommittedString returns the durably committed string for a key.
func (m *Memory) CommittedString(namespace, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.committed[namespace][key]
	if !ok {
		return "", false
	}
	return string(v), true
}

type memoryNamespace struct {
	store     *Memory
	namespace string
	pending   map[string][]byte
}

func (n *memoryNamespace) get(key string) ([]byte, error) {
	if v, ok := n.pending[key]; ok {
		return v, nil
	}
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	v, ok := n.store.committed[n.namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (n *memoryNamespace) set(key string, value []byte) error {
	n.store.mu.Lock()
	err := n.store.SetErr
	n.store.mu.Unlock()
	if err != nil {
		return err
	}
	if n.pending == nil {
		n.pending = make(map[string][]byte)
	}
	n.pending[key] = value
	return nil
}

func (n *memoryNamespace) GetU32(key string) (uint32, error) {
	v, err := n.get(key)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, fmt.Errorf("key %s: expected 4 bytes, got %d", key, len(v))
	}
	return uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3]), nil
}

func (n *memoryNamespace) SetU32(key string, value uint32) error {
	return n.set(key, []byte{
		byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value),
	})
}

func (n *memoryNamespace) GetString(key string) (string, error) {
	v, err := n.get(key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (n *memoryNamespace) SetString(key, value string) error {
	return n.set(key, []byte(value))
}

func (n *memoryNamespace) Commit() error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	if n.store.CommitErr != nil {
		return n.store.CommitErr
	}
	for k, v := range n.pending {
		n.store.committed[n.namespace][k] = v
	}
	n.pending = nil
	return nil
}

func (n *memoryNamespace) Close() error {
	n.pending = nil
	return nil
}
