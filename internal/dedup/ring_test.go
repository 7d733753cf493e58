package dedup

import "testing"

func TestAddAndContains(t *testing.T) {
	r := New(3)
	if r.Contains("sig1") {
		t.Fatal("empty ring should not contain anything")
	}
	if !r.Add("sig1") {
		t.Fatal("expected first add to report new")
	}
	if !r.Contains("sig1") {
		t.Fatal("expected sig1 to be present after add")
	}
	if r.Add("sig1") {
		t.Fatal("re-adding an existing signature must report false")
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	r := New(2)
	r.Add("a")
	r.Add("b")
	r.Add("c") // evicts "a"

	if r.Contains("a") {
		t.Error("expected oldest entry to be evicted")
	}
	if !r.Contains("b") || !r.Contains("c") {
		t.Error("expected the two most recent entries to remain")
	}
	if r.Len() != 2 {
		t.Errorf("len = %d, want 2", r.Len())
	}
}

func TestDefaultCapacity(t *testing.T) {
	r := New(0)
	if cap(r.entries) != defaultCapacity {
		t.Errorf("expected default capacity %d, got %d", defaultCapacity, cap(r.entries))
	}
}
