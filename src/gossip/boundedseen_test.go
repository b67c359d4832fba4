package gossip

import "testing"

func TestBoundedSeenSetEvictsOldestOnWrap(t *testing.T) {
	s := NewBoundedSeenSet(3)
	s.Insert("a")
	s.Insert("b")
	s.Insert("c")
	s.Insert("d") // wraps, evicting "a"

	if s.Contains("a") {
		t.Fatalf("expected oldest entry a to be evicted")
	}
	if !s.Contains("b") || !s.Contains("c") || !s.Contains("d") {
		t.Fatalf("expected b, c, d to remain in the window")
	}
	if s.Len() != 3 {
		t.Fatalf("expected ring to stay at capacity 3, got %d", s.Len())
	}
}

func TestBoundedSeenSetReinsertIsNoop(t *testing.T) {
	s := NewBoundedSeenSet(2)
	s.Insert("a")
	s.Insert("a")
	s.Insert("b")

	if s.Len() != 2 {
		t.Fatalf("re-inserting a known id must not grow the ring, got len=%d", s.Len())
	}
}
