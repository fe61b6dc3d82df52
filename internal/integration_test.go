package internal

import (
	"testing"
	"time"

	"github.com/basilic/energy-counter/internal/command"
	"github.com/basilic/energy-counter/internal/counter"
	"github.com/basilic/energy-counter/internal/engine"
	"github.com/basilic/energy-counter/internal/flush"
	"github.com/basilic/energy-counter/internal/gpio"
	"github.com/basilic/energy-counter/internal/mqtt"
	"github.com/basilic/energy-counter/internal/storage"
)

const (
	integrationWindow = 50 * time.Millisecond
	integrationSettle = 4 * integrationWindow
)

// TestIntegrationFullFlow exercises the complete path from GPIO edges to
// persisted counters and MQTT, using fakes for the hardware and the broker.
func TestIntegrationFullFlow(t *testing.T) {
	store := storage.NewMemory()
	ns, err := store.Open(storage.NamespaceCounters)
	if err != nil {
		t.Fatalf("open namespace: %v", err)
	}
	defer ns.Close()

	const channels = 3
	counters := counter.NewStoreWith(storage.LoadCounters(ns, channels))

	inputs := gpio.NewFakeInputs(channels)
	eng, err := engine.New(inputs, counters, integrationWindow, 16)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer eng.Stop()
	if err := eng.Start(); err != nil {
		t.Fatalf("engine.Start: %v", err)
	}

	flusher := flush.New(counters, ns, 3, time.Hour) // threshold 3, manual ticks
	client := mqtt.NewFakeClient("energie")
	proc := command.NewProcessor(counters, flusher, client)
	client.SetCommandHandler(func(payload string) {
		if err := proc.Handle(payload); err != nil {
			t.Logf("command %q: %v", payload, err)
		}
	})

	// Four pulses on channel 0, two on channel 1.
	for i := 0; i < 4; i++ {
		inputs.Pulse(0)
		time.Sleep(integrationSettle)
	}
	for i := 0; i < 2; i++ {
		inputs.Pulse(1)
		time.Sleep(integrationSettle)
	}

	if got := counters.Get(0); got != 4 {
		t.Fatalf("channel 0: got %d, want 4", got)
	}
	if got := counters.Get(1); got != 2 {
		t.Fatalf("channel 1: got %d, want 2", got)
	}

	// Threshold 3: channel 0 flushes, channel 1 stays below.
	flusher.Tick()
	if v, ok := store.CommittedU32(storage.NamespaceCounters, "c0"); !ok || v != 4 {
		t.Errorf("c0 durable after tick: got %d (ok=%v), want 4", v, ok)
	}
	if _, ok := store.CommittedU32(storage.NamespaceCounters, "c1"); ok {
		t.Error("c1 flushed below threshold")
	}

	// Force a counter over MQTT: memory, durable state, and the flush
	// baseline all move to the forced value.
	client.InjectCommand("Force_Compteur[1]=500")
	if got := counters.Get(1); got != 500 {
		t.Fatalf("channel 1 after force: got %d, want 500", got)
	}
	if v, ok := store.CommittedU32(storage.NamespaceCounters, "c1"); !ok || v != 500 {
		t.Errorf("c1 durable after force: got %d (ok=%v), want 500", v, ok)
	}
	flusher.Tick()
	if v, _ := store.CommittedU32(storage.NamespaceCounters, "c1"); v != 500 {
		t.Errorf("c1 re-flushed after force: got %d, want 500", v)
	}

	// Read a counter over MQTT: reply appears on the reply topic.
	client.InjectCommand("Read_Compteur[0]")
	replies := client.MessagesOn("energie/reply")
	if len(replies) != 1 {
		t.Fatalf("replies: got %d, want 1", len(replies))
	}
	if replies[0] != "Compteur[0]=4" {
		t.Errorf("reply: got %q, want Compteur[0]=4", replies[0])
	}

	// Pulses after the force stack on the forced value.
	inputs.Pulse(1)
	time.Sleep(integrationSettle)
	if got := counters.Get(1); got != 501 {
		t.Fatalf("channel 1 after force+pulse: got %d, want 501", got)
	}

	// Reset everything: memory and durable storage go to zero in one commit.
	client.InjectCommand("Init_All")
	for i := 0; i < channels; i++ {
		if got := counters.Get(i); got != 0 {
			t.Errorf("channel %d after Init_All: got %d, want 0", i, got)
		}
		if v, ok := store.CommittedU32(storage.NamespaceCounters, storage.CounterKey(i)); !ok || v != 0 {
			t.Errorf("c%d durable after Init_All: got %d (ok=%v), want 0", i, v, ok)
		}
	}

	// A malformed command mutates nothing.
	client.InjectCommand("force_compteur[0]=9")
	if got := counters.Get(0); got != 0 {
		t.Errorf("channel 0 after malformed command: got %d, want 0", got)
	}
}

// TestIntegrationRestartRestoresCounters simulates a restart: counters loaded
// from storage resume where the last flush left them.
func TestIntegrationRestartRestoresCounters(t *testing.T) {
	store := storage.NewMemory()
	ns, err := store.Open(storage.NamespaceCounters)
	if err != nil {
		t.Fatalf("open namespace: %v", err)
	}

	counters := counter.NewStoreWith(storage.LoadCounters(ns, 2))
	inputs := gpio.NewFakeInputs(2)
	eng, err := engine.New(inputs, counters, integrationWindow, 16)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("engine.Start: %v", err)
	}

	flusher := flush.New(counters, ns, 1, time.Hour)
	for i := 0; i < 3; i++ {
		inputs.Pulse(0)
		time.Sleep(integrationSettle)
	}
	flusher.Tick()
	eng.Stop()
	ns.Close()

	// Restart: a fresh namespace handle and counter store over the same
	// backing data.
	ns2, err := store.Open(storage.NamespaceCounters)
	if err != nil {
		t.Fatalf("reopen namespace: %v", err)
	}
	defer ns2.Close()

	restored := counter.NewStoreWith(storage.LoadCounters(ns2, 2))
	if got := restored.Get(0); got != 3 {
		t.Errorf("restored channel 0: got %d, want 3", got)
	}
	if got := restored.Get(1); got != 0 {
		t.Errorf("restored channel 1: got %d, want 0", got)
	}
}

// TestIntegrationPublishCycle publishes every counter under its meter name.
func TestIntegrationPublishCycle(t *testing.T) {
	counters := counter.NewStoreWith([]uint32{120, 45})
	client := mqtt.NewFakeClient("energie")
	names := []string{"garage", "atelier"}

	for i, v := range counters.Snapshot() {
		if err := client.PublishCounter(names[i], v); err != nil {
			t.Fatalf("publish %s: %v", names[i], err)
		}
	}

	if got := client.MessagesOn("energie/garage"); len(got) != 1 || got[0] != "120" {
		t.Errorf("energie/garage: got %v", got)
	}
	if got := client.MessagesOn("energie/atelier"); len(got) != 1 || got[0] != "45" {
		t.Errorf("energie/atelier: got %v", got)
	}
}
