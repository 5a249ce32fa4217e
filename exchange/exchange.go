package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/blobstore"
	"github.com/hupe1980/stepwise/resource"
)

var (
	// ErrNotCommitted is returned by Fetch when the producing step has not
	// been committed yet.
	ErrNotCommitted = errors.New("exchange: step not committed")

	// ErrIncomplete is returned by CommitStep when nodes have not delivered.
	ErrIncomplete = errors.New("exchange: step incomplete")
)

// TransferObserver is told about every archive written or read.
type TransferObserver interface {
	ObserveTransfer(key Key, bytes int, d time.Duration, err error)
}

// TransferObserverFunc adapts a function to TransferObserver.
type TransferObserverFunc func(key Key, bytes int, d time.Duration, err error)

func (f TransferObserverFunc) ObserveTransfer(key Key, bytes int, d time.Duration, err error) {
	f(key, bytes, d, err)
}

// Option configures an Exchange.
type Option func(*Exchange)

// WithCompression sets the archive compression of published objects.
func WithCompression(c archive.Compression) Option {
	return func(e *Exchange) { e.compression = c }
}

// WithCommitLog enables commit tracking. Without a commit log Fetch does
// not check ordering.
func WithCommitLog(l blobstore.CommitLog) Option {
	return func(e *Exchange) { e.commits = l }
}

// WithController throttles store IO through rc.
func WithController(rc *resource.Controller) Option {
	return func(e *Exchange) { e.rc = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exchange) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTransferObserver registers an observer.
func WithTransferObserver(o TransferObserver) Option {
	return func(e *Exchange) { e.observer = o }
}

// Record describes one published archive.
type Record struct {
	Key         Key
	Tag         archive.Tag
	Compression archive.Compression
	Bytes       int
	RawBytes    uint64
}

// Exchange is a Transport over a blobstore. It is safe for concurrent use.
type Exchange struct {
	store       blobstore.BlobStore
	registry    *archive.Registry
	compression archive.Compression
	commits     blobstore.CommitLog
	rc          *resource.Controller
	logger      *slog.Logger
	observer    TransferObserver

	mu        sync.Mutex
	delivered map[string]*roaring.Bitmap
	records   map[string]Record
}

var _ Transport = (*Exchange)(nil)

// New creates an Exchange that writes to store and decodes through reg.
func New(store blobstore.BlobStore, reg *archive.Registry, opts ...Option) *Exchange {
	e := &Exchange{
		store:       store,
		registry:    reg,
		compression: archive.CompressionLZ4,
		logger:      slog.New(slog.DiscardHandler),
		delivered:   make(map[string]*roaring.Bitmap),
		records:     make(map[string]Record),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying blob store.
func (e *Exchange) Store() blobstore.BlobStore { return e.store }

// Publish encodes obj and writes it under key.
func (e *Exchange) Publish(ctx context.Context, key Key, obj archive.Serializable) error {
	if err := key.Validate(); err != nil {
		return err
	}
	start := time.Now()
	data, err := archive.Encode(obj, archive.WithCompression(e.compression))
	if err == nil {
		err = e.rc.AcquireIO(ctx, len(data))
	}
	if err == nil {
		err = e.store.Put(ctx, key.Path(), data)
	}
	e.observe(key, len(data), time.Since(start), err)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "publish failed",
			slog.String("key", key.Path()), slog.String("error", err.Error()))
		return fmt.Errorf("publish %s: %w", key, err)
	}

	h, err := archive.Peek(data)
	if err != nil {
		return err
	}
	e.mu.Lock()
	bm, ok := e.delivered[key.StepPath()]
	if !ok {
		bm = roaring.New()
		e.delivered[key.StepPath()] = bm
	}
	bm.Add(uint32(key.Node))
	e.records[key.Path()] = Record{
		Key:         key,
		Tag:         h.Tag,
		Compression: h.Compression,
		Bytes:       len(data),
		RawBytes:    h.RawLength,
	}
	e.mu.Unlock()

	e.logger.LogAttrs(ctx, slog.LevelDebug, "published",
		slog.String("key", key.Path()),
		slog.String("tag", h.Tag.String()),
		slog.Int("bytes", len(data)),
		slog.String("compression", h.Compression.String()))
	return nil
}

// Fetch reads and decodes the object under key. With a commit log, the
// producing step must be committed.
func (e *Exchange) Fetch(ctx context.Context, key Key) (archive.Serializable, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if e.commits != nil {
		ok, err := e.commits.Committed(ctx, key.StepPath())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotCommitted, key.StepPath())
		}
	}
	return e.read(ctx, key)
}

func (e *Exchange) read(ctx context.Context, key Key) (archive.Serializable, error) {
	start := time.Now()
	data, err := blobstore.ReadAll(ctx, e.store, key.Path())
	if err == nil {
		err = e.rc.AcquireIO(ctx, len(data))
	}
	var obj archive.Serializable
	if err == nil {
		obj, err = e.registry.Decode(data)
	}
	e.observe(key, len(data), time.Since(start), err)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "fetch failed",
			slog.String("key", key.Path()), slog.String("error", err.Error()))
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	return obj, nil
}

// Ship publishes obj and reads it back as the consumer would.
func (e *Exchange) Ship(ctx context.Context, key Key, obj archive.Serializable) (archive.Serializable, error) {
	if err := e.Publish(ctx, key, obj); err != nil {
		return nil, err
	}
	return e.read(ctx, key)
}

// Delivered returns the nodes that published output for the step.
func (e *Exchange) Delivered(job string, round int, step algorithm.StepID) []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	bm, ok := e.delivered[Key{Job: job, Round: round, Step: step}.StepPath()]
	if !ok {
		return nil
	}
	nodes := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		nodes = append(nodes, int(it.Next()))
	}
	return nodes
}

// Missing returns the nodes in [0, nNodes) that have not delivered.
func (e *Exchange) Missing(job string, round int, step algorithm.StepID, nNodes int) []int {
	want := roaring.New()
	want.AddRange(0, uint64(nNodes))

	e.mu.Lock()
	if bm, ok := e.delivered[Key{Job: job, Round: round, Step: step}.StepPath()]; ok {
		want.AndNot(bm)
	}
	e.mu.Unlock()

	missing := make([]int, 0, want.GetCardinality())
	for _, n := range want.ToArray() {
		missing = append(missing, int(n))
	}
	return missing
}

// Complete reports whether every node in [0, nNodes) delivered.
func (e *Exchange) Complete(job string, round int, step algorithm.StepID, nNodes int) bool {
	return len(e.Missing(job, round, step, nNodes)) == 0
}

// CommitStep commits the step once all nNodes nodes delivered. Without a
// commit log only completeness is checked.
func (e *Exchange) CommitStep(ctx context.Context, job string, round int, step algorithm.StepID, nNodes int) error {
	if missing := e.Missing(job, round, step, nNodes); len(missing) > 0 {
		return fmt.Errorf("%w: %s/r%d/%s missing nodes %v", ErrIncomplete, job, round, step, missing)
	}
	if e.commits == nil {
		return nil
	}
	path := Key{Job: job, Round: round, Step: step}.StepPath()
	if err := e.commits.Commit(ctx, path); err != nil {
		return err
	}
	e.logger.LogAttrs(ctx, slog.LevelDebug, "committed", slog.String("step", path), slog.Int("nodes", nNodes))
	return nil
}

// Records returns the published archives of job sorted by path.
func (e *Exchange) Records(job string) []Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Record
	for _, r := range e.records {
		if r.Key.Job == job {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Record) int {
		if a.Key.Round != b.Key.Round {
			return a.Key.Round - b.Key.Round
		}
		if a.Key.Step.Step != b.Key.Step.Step {
			return int(a.Key.Step.Step) - int(b.Key.Step.Step)
		}
		if a.Key.Step.Role != b.Key.Step.Role {
			return int(a.Key.Step.Role) - int(b.Key.Step.Role)
		}
		if a.Key.Node != b.Key.Node {
			return a.Key.Node - b.Key.Node
		}
		switch {
		case a.Key.Name < b.Key.Name:
			return -1
		case a.Key.Name > b.Key.Name:
			return 1
		}
		return 0
	})
	return out
}

func (e *Exchange) observe(key Key, bytes int, d time.Duration, err error) {
	if e.observer != nil {
		e.observer.ObserveTransfer(key, bytes, d, err)
	}
}
