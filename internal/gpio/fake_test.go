package gpio

import (
	"errors"
	"testing"
)

func TestFakeInputsEdgeDelivery(t *testing.T) {
	f := NewFakeInputs(3)

	var got []int
	if err := f.Watch(func(ch int) { got = append(got, ch) }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	f.Edge(1)
	f.Edge(0)
	f.Edge(1)

	if len(got) != 3 || got[0] != 1 || got[1] != 0 || got[2] != 1 {
		t.Errorf("unexpected edges: %v", got)
	}
}

func TestFakeInputsEdgeBeforeWatch(t *testing.T) {
	f := NewFakeInputs(1)
	// Must not panic.
	f.Edge(0)
}

func TestFakeInputsLevels(t *testing.T) {
	f := NewFakeInputs(2)

	high, err := f.Level(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if high {
		t.Error("expected LOW initially")
	}

	f.SetLevel(0, true)
	high, _ = f.Level(0)
	if !high {
		t.Error("expected HIGH after SetLevel")
	}

	high, _ = f.Level(1)
	if high {
		t.Error("channel 1 should be untouched")
	}
}

func TestFakeInputsLevelError(t *testing.T) {
	f := NewFakeInputs(1)
	f.LevelError = errors.New("simulated error")

	if _, err := f.Level(0); err == nil {
		t.Error("expected error to be returned")
	}
}

func TestFakeInputsLevelOutOfRange(t *testing.T) {
	f := NewFakeInputs(1)
	if _, err := f.Level(5); err == nil {
		t.Error("expected error for out-of-range channel")
	}
}

func TestFakeInputsPulse(t *testing.T) {
	f := NewFakeInputs(1)

	edges := 0
	f.Watch(func(int) { edges++ })
	f.Pulse(0)

	if edges != 1 {
		t.Errorf("expected 1 edge, got %d", edges)
	}
	if high, _ := f.Level(0); !high {
		t.Error("level should be HIGH after Pulse")
	}
}

func TestFakeInputsWatchError(t *testing.T) {
	f := NewFakeInputs(1)
	f.WatchError = errors.New("no lines")
	if err := f.Watch(func(int) {}); err == nil {
		t.Error("expected watch error")
	}
}

func TestFakeInputsClose(t *testing.T) {
	f := NewFakeInputs(1)
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeButton(t *testing.T) {
	b := NewFakeButton()

	down, err := b.Pressed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if down {
		t.Error("expected released initially")
	}

	b.SetPressed(true)
	down, _ = b.Pressed()
	if !down {
		t.Error("expected pressed")
	}

	b.PressedError = errors.New("simulated error")
	if _, err := b.Pressed(); err == nil {
		t.Error("expected error to be returned")
	}
}
