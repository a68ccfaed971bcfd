package utils

import (
	"cmp"
	"maps"
	"slices"
	"sync"
)

// Registry is a map[K]V safe for concurrent use.
// Entries can be added or replaced but never removed.
type Registry[K cmp.Ordered, V any] struct {
	mut     sync.RWMutex
	entries map[K]V
}

// NewRegistry returns an empty Registry.
func NewRegistry[K cmp.Ordered, V any]() *Registry[K, V] {
	return &Registry[K, V]{entries: make(map[K]V)}
}

// Add registers value under name. It errors with ErrNameConflict if name is in use.
func (self *Registry[K, V]) Add(name K, value V) error {
	self.mut.Lock()
	defer self.mut.Unlock()

	if _, conflict := self.entries[name]; conflict {
		return NewError(0, ErrNameConflict, "%v already registered", name)
	}
	self.entries[name] = value
	return nil
}

// Set registers value under name, replacing any previous value.
func (self *Registry[K, V]) Set(name K, value V) {
	self.mut.Lock()
	defer self.mut.Unlock()

	self.entries[name] = value
}

// Get returns the value registered under name and whether it exists.
// A nil Registry is empty.
func (self *Registry[K, V]) Get(name K) (V, bool) {
	var rv V
	if nil == self {
		return rv, false
	}

	self.mut.RLock()
	defer self.mut.RUnlock()

	rv, found := self.entries[name]
	return rv, found
}

// Names returns the sorted list of registered names.
func (self *Registry[K, V]) Names() []K {
	if nil == self {
		return nil
	}

	self.mut.RLock()
	defer self.mut.RUnlock()

	return slices.Sorted(maps.Keys(self.entries))
}

// Len returns the number of registered entries.
func (self *Registry[K, V]) Len() int {
	if nil == self {
		return 0
	}

	self.mut.RLock()
	defer self.mut.RUnlock()

	return len(self.entries)
}
