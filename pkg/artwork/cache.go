package artwork

import (
	"container/list"
	"sync"

	"github.com/gregjones/httpcache"
)

const DefaultMaxCacheBytes = 64 << 20

// BoundedCache is an in memory httpcache.Cache holding at most maxBytes of
// cached responses. The least recently used responses are evicted first.
type BoundedCache struct {
	mut      sync.Mutex
	maxBytes int64
	size     int64
	order    *list.List // front is most recently used
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewBoundedCache returns an empty BoundedCache, maxBytes <= 0 selects DefaultMaxCacheBytes.
func NewBoundedCache(maxBytes int64) *BoundedCache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxCacheBytes
	}
	return &BoundedCache{
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the response stored under key.
func (self *BoundedCache) Get(key string) ([]byte, bool) {
	self.mut.Lock()
	defer self.mut.Unlock()

	elt, found := self.entries[key]
	if !found {
		return nil, false
	}
	self.order.MoveToFront(elt)

	return elt.Value.(*cacheEntry).data, true
}

// Set stores data under key, evicting older responses if needed.
// data larger than the cache capacity is not stored.
func (self *BoundedCache) Set(key string, data []byte) {
	self.mut.Lock()
	defer self.mut.Unlock()

	self.remove(key)
	if int64(len(data)) > self.maxBytes {
		return
	}
	self.entries[key] = self.order.PushFront(&cacheEntry{key: key, data: data})
	self.size += int64(len(data))
	for self.size > self.maxBytes {
		self.remove(self.order.Back().Value.(*cacheEntry).key)
	}
}

// Delete removes the response stored under key.
func (self *BoundedCache) Delete(key string) {
	self.mut.Lock()
	defer self.mut.Unlock()

	self.remove(key)
}

// Size returns the number of bytes held by the cache.
func (self *BoundedCache) Size() int64 {
	self.mut.Lock()
	defer self.mut.Unlock()

	return self.size
}

func (self *BoundedCache) remove(key string) {
	elt, found := self.entries[key]
	if !found {
		return
	}
	self.order.Remove(elt)
	delete(self.entries, key)
	self.size -= int64(len(elt.Value.(*cacheEntry).data))
}

var _ httpcache.Cache = &BoundedCache{}
