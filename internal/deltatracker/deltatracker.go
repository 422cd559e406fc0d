// Package deltatracker computes differences between consecutive samples of
// cumulative counters, such as the byte counters reported by the panel.
package deltatracker

import (
	"sync"

	"golang.org/x/exp/constraints"
)

// Numeric is a constraint that permits any integer or floating-point type.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// Tracker is a thread-safe holder of two samples per key.
// K is the counter name, V the counter value type.
type Tracker[K comparable, V Numeric] struct {
	mu       sync.RWMutex
	current  map[K]V
	previous map[K]V
}

// New creates an empty tracker.
func New[K comparable, V Numeric]() *Tracker[K, V] {
	return &Tracker[K, V]{
		current:  make(map[K]V),
		previous: make(map[K]V),
	}
}

// Record sets the current value of each counter in values.
func (t *Tracker[K, V]) Record(values map[K]V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, v := range values {
		t.current[id] = v
	}
}

// Delta returns current - previous for a counter. ok is false unless both
// samples exist.
func (t *Tracker[K, V]) Delta(id K) (delta V, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	currentVal, currentOk := t.current[id]
	previousVal, previousOk := t.previous[id]
	if !currentOk || !previousOk {
		return 0, false
	}
	return currentVal - previousVal, true
}

// Cycle makes the current sample the previous one and starts a new interval.
func (t *Tracker[K, V]) Cycle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.previous = t.current
	t.current = make(map[K]V, len(t.previous))
}
