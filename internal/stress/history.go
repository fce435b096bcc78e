package stress

// HistoryCap is the bounded rolling window of retained readings.
const HistoryCap = 50

// History is a bounded, append-only sequence of readings with FIFO eviction.
// Owned exclusively by the aggregator's run loop; callers get copies.
type History struct {
	capacity int
	entries  []Reading
}

// NewHistory creates a history with the given capacity; values below 1 fall
// back to HistoryCap.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = HistoryCap
	}
	return &History{capacity: capacity, entries: make([]Reading, 0, capacity)}
}

// Append adds a reading, evicting the oldest entries once capacity is
// exceeded. Length can never exceed capacity afterwards.
func (h *History) Append(r Reading) {
	h.entries = append(h.entries, r)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
}

// Len returns the number of retained readings.
func (h *History) Len() int { return len(h.entries) }

// Entries returns a copy of the retained readings, oldest first.
func (h *History) Entries() []Reading {
	out := make([]Reading, len(h.entries))
	copy(out, h.entries)
	return out
}
