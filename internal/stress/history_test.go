package stress

import (
	"testing"
	"time"
)

func TestHistory_BoundedFIFO(t *testing.T) {
	t.Parallel()

	h := NewHistory(50)
	base := time.Now()
	for i := 0; i < 60; i++ {
		h.Append(Reading{Level: float64(i) / 100, CapturedAt: base.Add(time.Duration(i) * time.Second)})
	}

	if h.Len() != 50 {
		t.Fatalf("length after overflow: want 50, got %d", h.Len())
	}

	entries := h.Entries()
	// The 10 oldest readings (levels 0.00..0.09) must be gone.
	if got := entries[0].Level; got != 0.10 {
		t.Errorf("oldest retained level: want 0.10, got %v", got)
	}
	if got := entries[len(entries)-1].Level; got != 0.59 {
		t.Errorf("newest retained level: want 0.59, got %v", got)
	}

	// Ordering is append order, oldest first.
	for i := 1; i < len(entries); i++ {
		if !entries[i].CapturedAt.After(entries[i-1].CapturedAt) {
			t.Fatalf("entries out of order at index %d", i)
		}
	}
}

func TestHistory_EntriesReturnsCopy(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	h.Append(Reading{Level: 0.3})

	entries := h.Entries()
	entries[0].Level = 0.9

	if got := h.Entries()[0].Level; got != 0.3 {
		t.Errorf("internal entry mutated through copy: got %v", got)
	}
}

func TestHistory_DefaultCapacity(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	for i := 0; i < HistoryCap+5; i++ {
		h.Append(Reading{})
	}
	if h.Len() != HistoryCap {
		t.Errorf("default capacity: want %d, got %d", HistoryCap, h.Len())
	}
}
