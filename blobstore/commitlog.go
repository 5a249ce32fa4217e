package blobstore

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyCommitted is returned by CommitLog.Commit when the key was
// committed before.
var ErrAlreadyCommitted = errors.New("already committed")

// CommitLog records which keys are final. A commit is a conditional
// write: exactly one writer succeeds per key, which gives readers in other
// processes an ordering point that blob listing alone cannot.
type CommitLog interface {
	// Commit marks key as done. It fails with ErrAlreadyCommitted when key
	// was committed before.
	Commit(ctx context.Context, key string) error
	// Committed reports whether key has been committed.
	Committed(ctx context.Context, key string) (bool, error)
}

// MemoryCommitLog is a CommitLog for a single process.
type MemoryCommitLog struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemoryCommitLog creates an empty commit log.
func NewMemoryCommitLog() *MemoryCommitLog {
	return &MemoryCommitLog{keys: make(map[string]struct{})}
}

func (l *MemoryCommitLog) Commit(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.keys[key]; ok {
		return ErrAlreadyCommitted
	}
	l.keys[key] = struct{}{}
	return nil
}

func (l *MemoryCommitLog) Committed(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.keys[key]
	return ok, nil
}
