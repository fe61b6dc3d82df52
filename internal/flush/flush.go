// Package flush bounds the rate of durable counter writes. Counters are only
// flushed once they have accumulated a threshold of pulses since the last
// save, which caps both flash wear and the worst-case loss window on power
// failure (threshold - 1 pulses), independent of pulse rate.
//
// The Scheduler owns the storage namespace handle: every durable counter
// write, including the immediate command and portal writes, goes through it
// under one mutex, so a threshold flush can never interleave with a
// force-set on the same key.
package flush

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basilic/energy-counter/internal/counter"
	"github.com/basilic/energy-counter/internal/storage"
)

// Defaults carried over from the meter deployments this replaces.
const (
	DefaultThreshold = 100
	DefaultInterval  = 500 * time.Millisecond
)

// Scheduler periodically compares in-memory counters to the last durably
// written values and flushes the channels whose delta crossed the threshold.
type Scheduler struct {
	counters  *counter.Store
	ns        storage.Namespace
	threshold uint32
	interval  time.Duration

	mu        sync.Mutex
	lastSaved []uint32

	saves    atomic.Uint64
	failures atomic.Uint64
}

// New creates a Scheduler. The current counter values are taken as already
// durable: they were just loaded from (or written to) the store at boot.
// The Scheduler becomes the sole writer on the namespace handle.
func New(counters *counter.Store, ns storage.Namespace, threshold uint32, interval time.Duration) *Scheduler {
	return &Scheduler{
		counters:  counters,
		ns:        ns,
		threshold: threshold,
		interval:  interval,
		lastSaved: counters.Snapshot(),
	}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick performs one scheduling pass. The counter snapshot is taken inside
// the scheduler mutex, so a force-set cannot slip between the comparison and
// the write and be overwritten by a stale organic count. A failed write
// leaves lastSaved untouched, so the next tick retries naturally while the
// delta still exceeds the threshold.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.counters.Snapshot()
	for i, v := range snap {
		if v-s.lastSaved[i] < s.threshold {
			continue
		}
		if err := storage.SaveCounter(s.ns, i, v); err != nil {
			log.Printf("flush: counter %d: %v", i, err)
			s.failures.Add(1)
			continue
		}
		s.lastSaved[i] = v
		s.saves.Add(1)
		log.Printf("flush: counter %d saved: %d", i, v)
	}
}

// ForceSet sets a counter and writes it durably in one step, bypassing the
// threshold. Memory, the durable copy, and the flush baseline move inside
// one critical section. On a failed durable write the in-memory value is
// kept and the baseline stays put, so the threshold path retries later;
// the caller gets the error.
func (s *Scheduler) ForceSet(channel int, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters.Set(channel, value)
	if err := storage.SaveCounter(s.ns, channel, value); err != nil {
		s.failures.Add(1)
		return err
	}
	s.lastSaved[channel] = value
	s.saves.Add(1)
	return nil
}

// ResetAll zeroes every counter in memory and durably, in one commit.
func (s *Scheduler) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters.ResetAll()
	for i := range s.lastSaved {
		if err := s.ns.SetU32(storage.CounterKey(i), 0); err != nil {
			s.failures.Add(1)
			return err
		}
	}
	if err := s.ns.Commit(); err != nil {
		s.failures.Add(1)
		return err
	}
	for i := range s.lastSaved {
		s.lastSaved[i] = 0
	}
	s.saves.Add(uint64(len(s.lastSaved)))
	return nil
}

// SaveAll durably writes every counter regardless of threshold, as at
// shutdown.
func (s *Scheduler) SaveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.counters.Snapshot()
	for i, v := range snap {
		if err := s.ns.SetU32(storage.CounterKey(i), v); err != nil {
			s.failures.Add(1)
			return err
		}
	}
	if err := s.ns.Commit(); err != nil {
		s.failures.Add(1)
		return err
	}
	copy(s.lastSaved, snap)
	s.saves.Add(uint64(len(snap)))
	return nil
}

// Stats returns the number of successful and failed flushes so far.
func (s *Scheduler) Stats() (saves, failures uint64) {
	return s.saves.Load(), s.failures.Load()
}
