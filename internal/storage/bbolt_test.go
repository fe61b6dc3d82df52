package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "counters.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltRoundTrip(t *testing.T) {
	s := openTestBolt(t)
	ns, err := s.Open(NamespaceCounters)
	if err != nil {
		t.Fatalf("open namespace: %v", err)
	}

	if err := ns.SetU32("c0", 123456); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ns.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	v, err := ns.GetU32("c0")
	if err != nil || v != 123456 {
		t.Fatalf("get: %d, %v", v, err)
	}
}

func TestBoltNotFound(t *testing.T) {
	s := openTestBolt(t)
	ns, _ := s.Open(NamespaceCounters)

	if _, err := ns.GetU32("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBoltPendingVisibleBeforeCommit(t *testing.T) {
	s := openTestBolt(t)
	ns, _ := s.Open(NamespaceCounters)

	ns.SetU32("c1", 9)
	v, err := ns.GetU32("c1")
	if err != nil || v != 9 {
		t.Fatalf("pending read: %d, %v", v, err)
	}

	// A second handle does not see the uncommitted write.
	ns2, _ := s.Open(NamespaceCounters)
	if _, err := ns2.GetU32("c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("uncommitted write leaked: %v", err)
	}
}

func TestBoltSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counters.db")

	s, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ns, _ := s.Open(NamespaceCounters)
	ns.SetU32("c0", 42)
	if err := ns.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	ns2, _ := s2.Open(NamespaceCounters)
	values := LoadCounters(ns2, 5)
	if values[0] != 42 {
		t.Errorf("expected counter 0 = 42 after reopen, got %d", values[0])
	}
	for i := 1; i < 5; i++ {
		if values[i] != 0 {
			t.Errorf("counter %d: expected 0, got %d", i, values[i])
		}
	}
}

func TestBoltStrings(t *testing.T) {
	s := openTestBolt(t)
	ns, _ := s.Open(NamespaceMQTT)

	ns.SetString("mqtt_user", "basilic")
	if err := ns.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	v, err := ns.GetString("mqtt_user")
	if err != nil || v != "basilic" {
		t.Fatalf("get: %q, %v", v, err)
	}
}

func TestBoltNamespacesAreIsolated(t *testing.T) {
	s := openTestBolt(t)
	a, _ := s.Open("a")
	b, _ := s.Open("b")

	a.SetU32("k", 1)
	a.Commit()

	if _, err := b.GetU32("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("namespaces not isolated: %v", err)
	}
}
