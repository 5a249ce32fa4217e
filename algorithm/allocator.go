package algorithm

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/stepwise/resource"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Allocator creates partial-result tables and accounts their memory against
// a resource.Controller. A nil *Allocator allocates without accounting.
//
// The memory limit applies to the tables in use: Free hands a superseded
// table back, Release hands back everything still held.
type Allocator struct {
	rc    *resource.Controller
	bytes atomic.Int64
	count atomic.Int64

	mu   sync.Mutex
	held map[*table.Dense]int64
}

// NewAllocator returns an allocator charging rc.
func NewAllocator(rc *resource.Controller) *Allocator {
	return &Allocator{rc: rc}
}

// Dense allocates a zeroed rows×cols table. Failures are reported as
// status.ErrMemoryAllocationFailed for the named slot.
func (a *Allocator) Dense(name string, rows, cols int, kind table.Kind) (*table.Dense, error) {
	if rows < 0 || cols < 0 {
		return nil, status.New().Addf(status.ErrMemoryAllocationFailed, name, "invalid shape %dx%d", rows, cols)
	}
	size := table.SizeInBytes(rows, cols)
	if a != nil {
		if err := a.rc.TryAcquireMemory(size); err != nil {
			return nil, status.New().Addf(status.ErrMemoryAllocationFailed, name, "%v", err)
		}
	}
	t, err := table.New(rows, cols, kind)
	if err != nil {
		if a != nil {
			a.rc.ReleaseMemory(size)
		}
		return nil, status.New().Addf(status.ErrMemoryAllocationFailed, name, "%v", err)
	}
	if a != nil {
		a.mu.Lock()
		if a.held == nil {
			a.held = make(map[*table.Dense]int64)
		}
		a.held[t] = size
		a.mu.Unlock()
		a.bytes.Add(size)
		a.count.Add(1)
	}
	return t, nil
}

// Free returns the memory of tables allocated here to the controller.
// Nil tables and tables from elsewhere are ignored.
func (a *Allocator) Free(tables ...*table.Dense) {
	if a == nil {
		return
	}
	var n int64
	a.mu.Lock()
	for _, t := range tables {
		if size, ok := a.held[t]; ok {
			n += size
			delete(a.held, t)
		}
	}
	a.mu.Unlock()
	a.rc.ReleaseMemory(n)
}

// Bytes returns the bytes allocated so far, freed tables included.
func (a *Allocator) Bytes() int64 {
	if a == nil {
		return 0
	}
	return a.bytes.Load()
}

// InUse returns the bytes of the tables not yet freed.
func (a *Allocator) InUse() int64 {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var n int64
	for _, size := range a.held {
		n += size
	}
	return n
}

// Count returns the number of tables allocated so far.
func (a *Allocator) Count() int64 {
	if a == nil {
		return 0
	}
	return a.count.Load()
}

// Release returns every held byte to the controller and resets the
// counters.
func (a *Allocator) Release() {
	if a == nil {
		return
	}
	a.mu.Lock()
	var n int64
	for _, size := range a.held {
		n += size
	}
	a.held = nil
	a.mu.Unlock()
	a.bytes.Store(0)
	a.count.Store(0)
	a.rc.ReleaseMemory(n)
}
