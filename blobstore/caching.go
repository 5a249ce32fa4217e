package blobstore

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/stepwise/resource"
)

// CachingStore keeps recently read blobs in an LRU in front of another
// store. Blobs are immutable once published, so entries are only dropped
// on eviction, Put or Delete of the same name.
type CachingStore struct {
	inner    BlobStore
	capacity int64
	rc       *resource.Controller

	mu    sync.Mutex
	size  int64
	items map[string]*list.Element
	lru   *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	name string
	data []byte
}

// NewCachingStore wraps inner with a cache of capacity bytes. Cached bytes
// are charged against rc when it is non-nil.
func NewCachingStore(inner BlobStore, capacity int64, rc *resource.Controller) *CachingStore {
	return &CachingStore{
		inner:    inner,
		capacity: capacity,
		rc:       rc,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Open serves name from the cache, reading it whole from the inner store on
// a miss.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if data, ok := s.get(name); ok {
		s.hits.Add(1)
		return &memoryBlob{data: data}, nil
	}
	s.misses.Add(1)
	data, err := ReadAll(ctx, s.inner, name)
	if err != nil {
		return nil, err
	}
	s.set(name, data)
	return &memoryBlob{data: data}, nil
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats returns the cache hit and miss counts.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Size returns the cached bytes.
func (s *CachingStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *CachingStore) get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[name]; ok {
		s.lru.MoveToFront(e)
		return e.Value.(*cacheEntry).data, true
	}
	return nil, false
}

func (s *CachingStore) set(name string, data []byte) {
	n := int64(len(data))
	if n > s.capacity {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[name]; ok {
		return
	}
	for s.size+n > s.capacity && s.lru.Len() > 0 {
		s.remove(s.lru.Back())
	}
	if s.rc != nil {
		if err := s.rc.TryAcquireMemory(n); err != nil {
			return
		}
	}
	s.items[name] = s.lru.PushFront(&cacheEntry{name: name, data: data})
	s.size += n
}

func (s *CachingStore) invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[name]; ok {
		s.remove(e)
	}
}

func (s *CachingStore) remove(e *list.Element) {
	ent := s.lru.Remove(e).(*cacheEntry)
	delete(s.items, ent.name)
	n := int64(len(ent.data))
	s.size -= n
	if s.rc != nil {
		s.rc.ReleaseMemory(n)
	}
}
