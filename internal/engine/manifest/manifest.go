// Package manifest implements the in-memory LRU index of cache entries.
package manifest

import (
	"container/list"
	"iter"

	"go.trai.ch/mediacache/internal/core/domain"
)

// EvictFunc is called with every entry removed through Remove, EvictOldest or Clear.
type EvictFunc func(entry domain.Entry)

// Manifest maps safe identifiers to entries, most recently used first.
// It is not safe for concurrent use; the owning cache serializes access.
type Manifest struct {
	order      *list.List
	items      map[string]*list.Element
	totalBytes int64
	onEvict    EvictFunc
}

// New creates an empty Manifest.
func New(onEvict EvictFunc) *Manifest {
	return &Manifest{
		order:   list.New(),
		items:   make(map[string]*list.Element),
		onEvict: onEvict,
	}
}

// Load creates a Manifest from entries ordered most recently used first.
// Empty entries and repeated identifiers after the first are skipped.
func Load(entries []domain.Entry, onEvict EvictFunc) *Manifest {
	m := New(onEvict)
	for _, e := range entries {
		if e.Empty() {
			continue
		}
		if _, ok := m.items[e.SafeIdentifier]; ok {
			continue
		}
		stored := e.Stored()
		m.items[e.SafeIdentifier] = m.order.PushBack(stored)
		m.totalBytes += stored.Bytes()
	}
	return m
}

// Get returns the entry for safeID, moving it to the front when promote is set.
func (m *Manifest) Get(safeID string, promote bool) (domain.Entry, bool) {
	el, ok := m.items[safeID]
	if !ok {
		return domain.Entry{}, false
	}
	if promote {
		m.order.MoveToFront(el)
	}
	return entryOf(el), true
}

// Put inserts or replaces the entry and moves it to the front.
// Putting an entry without variants removes it without calling the evict func.
func (m *Manifest) Put(entry domain.Entry) {
	if entry.Empty() {
		m.Take(entry.SafeIdentifier)
		return
	}

	stored := entry.Stored()
	if el, ok := m.items[entry.SafeIdentifier]; ok {
		m.totalBytes += stored.Bytes() - entryOf(el).Bytes()
		el.Value = stored
		m.order.MoveToFront(el)
		return
	}

	m.items[entry.SafeIdentifier] = m.order.PushFront(stored)
	m.totalBytes += stored.Bytes()
}

// Remove deletes the entry and passes it to the evict func.
func (m *Manifest) Remove(safeID string) (domain.Entry, bool) {
	e, ok := m.Take(safeID)
	if ok && m.onEvict != nil {
		m.onEvict(e)
	}
	return e, ok
}

// Take deletes the entry without calling the evict func.
func (m *Manifest) Take(safeID string) (domain.Entry, bool) {
	el, ok := m.items[safeID]
	if !ok {
		return domain.Entry{}, false
	}
	e := entryOf(el)
	m.order.Remove(el)
	delete(m.items, safeID)
	m.totalBytes -= e.Bytes()
	return e, true
}

// Oldest returns the least recently used entry.
func (m *Manifest) Oldest() (domain.Entry, bool) {
	el := m.order.Back()
	if el == nil {
		return domain.Entry{}, false
	}
	return entryOf(el), true
}

// EvictOldest removes the least recently used entry through the evict func.
func (m *Manifest) EvictOldest() (domain.Entry, bool) {
	oldest, ok := m.Oldest()
	if !ok {
		return domain.Entry{}, false
	}
	return m.Remove(oldest.SafeIdentifier)
}

// Clear removes every entry, least recently used first.
func (m *Manifest) Clear() {
	for m.order.Len() > 0 {
		m.EvictOldest()
	}
}

// All yields entries from most to least recently used.
// The manifest must not be modified during iteration.
func (m *Manifest) All() iter.Seq[domain.Entry] {
	return func(yield func(domain.Entry) bool) {
		for el := m.order.Front(); el != nil; el = el.Next() {
			if !yield(entryOf(el)) {
				return
			}
		}
	}
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return m.order.Len()
}

// TotalBytes returns the summed size of every stored variant.
func (m *Manifest) TotalBytes() int64 {
	return m.totalBytes
}

func entryOf(el *list.Element) domain.Entry {
	return el.Value.(domain.Entry).Clone() //nolint:forcetypeassert // only entries are stored
}
