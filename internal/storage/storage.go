// Package storage provides the durable key-value store the daemon persists
// counters and settings to. The real implementation is a bbolt file; the
// memory implementation allows testing without touching disk.
//
// Writes follow set-then-commit semantics: Set buffers a value in the
// namespace handle, Commit makes every buffered write durable atomically.
package storage

import (
	"errors"
	"fmt"
	"log"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Store opens namespaces of a durable key-value store.
type Store interface {
	// Open returns a handle on the named namespace, creating it if needed.
	Open(namespace string) (Namespace, error)

	// Close releases the underlying store. Open handles become invalid.
	Close() error
}

// Namespace is a handle on one namespace. A handle is not safe for
// concurrent use: callers either keep it on one goroutine or serialize
// every access through one lock, as the flush scheduler does for the
// counter namespace.
type Namespace interface {
	// GetU32 returns the value for key, or ErrNotFound.
	// Buffered uncommitted writes are visible to the same handle.
	GetU32(key string) (uint32, error)

	// SetU32 buffers a write. It becomes durable on Commit.
	SetU32(key string, value uint32) error

	// GetString returns the string value for key, or ErrNotFound.
	GetString(key string) (string, error)

	// SetString buffers a string write. It becomes durable on Commit.
	SetString(key, value string) error

	// Commit durably applies all buffered writes in one atomic step.
	Commit() error

	// Close discards any uncommitted writes and releases the handle.
	Close() error
}

// Namespace names used by the daemon, matching the layout the counters were
// historically stored under.
const (
	NamespaceCounters = "counters"
	NamespaceMQTT     = "mqtt"
	NamespaceConfig   = "config"
)

// CounterKey returns the key a channel's count is stored under ("c0", "c1", ...).
func CounterKey(channel int) string {
	return fmt.Sprintf("c%d", channel)
}

// NameKey returns the key a channel's meter name is stored under ("m0", "m1", ...).
func NameKey(channel int) string {
	return fmt.Sprintf("m%d", channel)
}

// LoadCounters reads n counter values from the namespace. A missing key
// yields 0; a read error is logged and also yields 0, so a damaged store
// never prevents startup.
func LoadCounters(ns Namespace, n int) []uint32 {
	values := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := ns.GetU32(CounterKey(i))
		switch {
		case err == nil:
			values[i] = v
		case errors.Is(err, ErrNotFound):
			values[i] = 0
		default:
			log.Printf("storage: read counter %d: %v", i, err)
			values[i] = 0
		}
	}
	return values
}

// SaveCounter durably writes one counter value: set then commit.
func SaveCounter(ns Namespace, channel int, value uint32) error {
	if err := ns.SetU32(CounterKey(channel), value); err != nil {
		return fmt.Errorf("set counter %d: %w", channel, err)
	}
	if err := ns.Commit(); err != nil {
		return fmt.Errorf("commit counter %d: %w", channel, err)
	}
	return nil
}
