// Package counter holds the authoritative pulse counts for all meter channels.
// The Store is the only piece of state shared between the debounce validator,
// the persistence scheduler, the command processor, and the configuration
// portal; every access goes through its single lock.
package counter

import "sync"

// Store is a fixed-size array of monotonic pulse counters behind one mutex.
// Counters only decrease through an explicit Set or ResetAll.
type Store struct {
	mu     sync.Mutex
	counts []uint32
}

// NewStore creates a Store with n counters, all zero.
func NewStore(n int) *Store {
	return &Store{counts: make([]uint32, n)}
}

// NewStoreWith creates a Store seeded with the given values, typically the
// counts loaded from durable storage at boot.
func NewStoreWith(values []uint32) *Store {
	counts := make([]uint32, len(values))
	copy(counts, values)
	return &Store{counts: counts}
}

// Len returns the number of channels. Constant after construction.
func (s *Store) Len() int {
	return len(s.counts)
}

// Get returns the current count for one channel.
// The channel index must be in range; callers handling external input are
// responsible for bounds validation before calling.
func (s *Store) Get(channel int) uint32 {
	s.mu.Lock()
	v := s.counts[channel]
	s.mu.Unlock()
	return v
}

// Increment adds one pulse to a channel and returns the new value.
func (s *Store) Increment(channel int) uint32 {
	s.mu.Lock()
	s.counts[channel]++
	v := s.counts[channel]
	s.mu.Unlock()
	return v
}

// Set overwrites a channel's count. Used by force-set commands and the
// configuration portal.
func (s *Store) Set(channel int, value uint32) {
	s.mu.Lock()
	s.counts[channel] = value
	s.mu.Unlock()
}

// ResetAll zeroes every counter in one critical section.
func (s *Store) ResetAll() {
	s.mu.Lock()
	for i := range s.counts {
		s.counts[i] = 0
	}
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of all counters taken under a single
// lock acquisition. The returned slice is owned by the caller.
func (s *Store) Snapshot() []uint32 {
	s.mu.Lock()
	snap := make([]uint32, len(s.counts))
	copy(snap, s.counts)
	s.mu.Unlock()
	return snap
}
