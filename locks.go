package docstamp

import (
	"sort"
	"sync"
)

// keyedLocks serializes signing passes per attachment. Fan-out passes lock
// their whole attachment set in sorted order so two overlapping passes can
// never deadlock. Entries are reference-counted and removed once the last
// holder releases, so the map does not grow with every attachment ever
// signed.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*lockEntry)}
}

func (k *keyedLocks) retain(id string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[id]
	if !ok {
		e = &lockEntry{}
		k.locks[id] = e
	}
	e.refs++
	return e
}

func (k *keyedLocks) release(id string, e *lockEntry) {
	e.mu.Unlock()
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, id)
	}
}

// acquire locks every id and returns the matching release function.
func (k *keyedLocks) acquire(ids []string) func() {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	held := make([]*lockEntry, len(sorted))
	for i, id := range sorted {
		held[i] = k.retain(id)
		held[i].mu.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.release(sorted[i], held[i])
		}
	}
}
