// Package diskcache implements a persistent, size-bounded cache of media
// artifacts. Each Cache owns one directory and serializes every operation on
// a dedicated executor goroutine.
package diskcache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/core/ports"
	"go.trai.ch/mediacache/internal/engine/budget"
	"go.trai.ch/mediacache/internal/engine/manifest"
	"go.trai.ch/zerr"
)

type state uint8

const (
	stateLoading state = iota
	stateReady
	stateFailed
)

// Options configures a Cache.
type Options struct {
	Name          string
	Dir           string
	TempDir       string
	MaxEntryBytes int64
	DefaultTTL    time.Duration
	Workers       int

	Governor    *budget.Governor
	Metadata    ports.MetadataStore
	Identifiers ports.IdentifierCodec
	Diagnostics ports.DiagnosticSink
	Logger      ports.Logger
	Clock       clockwork.Clock
}

// usage is a byte and entry tally.
type usage struct {
	bytes int64
	count int64
}

// Cache is a disk cache bound to one directory.
type Cache struct {
	name          string
	dir           string
	tempDir       string
	maxEntryBytes int64
	defaultTTL    time.Duration
	workers       int

	gov    *budget.Governor
	meta   ports.MetadataStore
	ids    ports.IdentifierCodec
	diag   ports.DiagnosticSink
	logger ports.Logger
	clock  clockwork.Clock

	ops        chan func()
	quit       chan struct{}
	done       chan struct{}
	loaded     chan struct{}
	loadedOnce sync.Once
	closeOnce  sync.Once
	cancel     context.CancelFunc
	bootWG     sync.WaitGroup

	// Owned by the executor goroutine.
	state        state
	closed       bool
	manifest     *manifest.Manifest
	dirty        map[string]string
	contribution usage
	deferred     usage
}

// New creates a Cache and starts loading its directory in the background.
// The cache accepts operations immediately.
func New(opts Options) (*Cache, error) {
	if opts.Name == "" {
		return nil, zerr.Wrap(domain.ErrInvalidCacheName, "cache name is empty")
	}
	if opts.Dir == "" {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidInput, "cache directory is empty"), "cache", opts.Name)
	}
	if opts.Governor == nil || opts.Metadata == nil || opts.Identifiers == nil || opts.Logger == nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidInput, "incomplete cache options"), "cache", opts.Name)
	}
	if opts.TempDir == "" {
		opts.TempDir = domain.DefaultTempPath()
	}
	if opts.Workers <= 0 {
		opts.Workers = domain.DefaultBootstrapWorkers
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = domain.DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = discardSink{}
	}

	// A directory we cannot create surfaces as a bootstrap failure.
	if err := os.MkdirAll(opts.Dir, domain.DirPerm); err != nil {
		opts.Logger.Warn(fmt.Sprintf("%s: failed to create %s: %v", opts.Name, opts.Dir, err))
	}
	if err := os.MkdirAll(opts.TempDir, domain.DirPerm); err != nil {
		opts.Logger.Warn(fmt.Sprintf("%s: failed to create %s: %v", opts.Name, opts.TempDir, err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		name:          opts.Name,
		dir:           opts.Dir,
		tempDir:       opts.TempDir,
		maxEntryBytes: opts.MaxEntryBytes,
		defaultTTL:    opts.DefaultTTL,
		workers:       opts.Workers,
		gov:           opts.Governor,
		meta:          opts.Metadata,
		ids:           opts.Identifiers,
		diag:          opts.Diagnostics,
		logger:        opts.Logger,
		clock:         opts.Clock,
		ops:           make(chan func()),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		loaded:        make(chan struct{}),
		cancel:        cancel,
		dirty:         make(map[string]string),
	}

	go c.run()
	c.gov.Register(c)

	c.bootWG.Add(1)
	go c.bootstrap(ctx)

	return c, nil
}

// Name returns the cache name.
func (c *Cache) Name() string {
	return c.name
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// WaitUntilLoaded blocks until the initial load finished, successfully or
// not, or ctx is done.
func (c *Cache) WaitUntilLoaded(ctx context.Context) error {
	select {
	case <-c.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the executor and withdraws this cache's usage from the shared counters.
// Files on disk are kept.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.gov.Unregister(c)
		c.do(func() {
			c.closed = true
			c.gov.Counters().Add(-c.contribution.bytes, -c.contribution.count)
			c.contribution = usage{}
		})
		close(c.quit)
		<-c.done
		c.bootWG.Wait()
		c.markLoaded()
	})
	return nil
}

// run executes submitted operations one at a time in submission order.
func (c *Cache) run() {
	defer close(c.done)
	for {
		select {
		case op := <-c.ops:
			op()
		case <-c.quit:
			return
		}
	}
}

// do runs fn on the executor and waits for it.
// It reports false when the cache was closed before fn could be submitted.
func (c *Cache) do(fn func()) bool {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
	}

	select {
	case c.ops <- op:
	case <-c.quit:
		return false
	}
	<-finished
	return true
}

// exec runs fn on the executor unless the cache is closed.
func (c *Cache) exec(fn func() error) error {
	err := domain.ErrCacheClosed
	c.do(func() {
		if c.closed {
			return
		}
		err = fn()
	})
	return err
}

// mutable reports whether the cache accepts mutations.
func (c *Cache) mutable() error {
	if c.state == stateFailed {
		return zerr.With(zerr.Wrap(domain.ErrCacheUnavailable, "cache failed to load"), "cache", c.name)
	}
	return nil
}

func (c *Cache) markLoaded() {
	c.loadedOnce.Do(func() { close(c.loaded) })
}

// adjust applies a usage delta to this cache's share of the shared counters.
// While loading, the part of a decrement exceeding what this cache has
// contributed so far is held back; publishing the loaded totals settles it.
func (c *Cache) adjust(bytes, count int64) {
	if c.state == stateLoading {
		if over := c.contribution.bytes + bytes; over < 0 {
			c.deferred.bytes += over
			bytes -= over
		}
		if over := c.contribution.count + count; over < 0 {
			c.deferred.count += over
			count -= over
		}
	}
	c.contribution.bytes += bytes
	c.contribution.count += count
	c.gov.Counters().Add(bytes, count)
}

// lookup returns the stored state of safeID, reading the files directly while
// the manifest is not loaded yet.
func (c *Cache) lookup(raw, safeID string, promote bool) (domain.Entry, bool) {
	switch c.state {
	case stateReady:
		e, ok := c.manifest.Get(safeID, promote)
		if ok && raw != "" {
			e.Identifier = raw
		}
		return e, ok
	case stateLoading:
		e := c.diskEntry(raw, safeID)
		return e, !e.Empty()
	default:
		return domain.Entry{}, false
	}
}

// store records the new state of an entry whose files were already updated.
func (c *Cache) store(before, after domain.Entry) {
	switch c.state {
	case stateReady:
		c.manifest.Put(after)
	case stateLoading:
		c.dirty[after.SafeIdentifier] = after.Identifier
	}
	c.adjust(after.Bytes()-before.Bytes(), after.Count()-before.Count())
}

// evicted is the manifest's eviction callback. Counters drop even when a
// file could not be deleted; the next load counts the orphan again.
func (c *Cache) evicted(e domain.Entry) {
	c.removeFiles(e)
	c.adjust(-e.Bytes(), -e.Count())
}

// evict removes an entry and its files.
func (c *Cache) evict(e domain.Entry) {
	if c.state == stateReady {
		c.manifest.Remove(e.SafeIdentifier)
		return
	}
	c.removeFiles(e)
	c.store(e, domain.Entry{Identifier: e.Identifier, SafeIdentifier: e.SafeIdentifier})
}

// EvictLRU removes least recently used entries while over reports true.
func (c *Cache) EvictLRU(over func() bool) int {
	evicted := 0
	_ = c.exec(func() error {
		if c.state != stateReady {
			return nil
		}
		for over() {
			if _, ok := c.manifest.EvictOldest(); !ok {
				break
			}
			evicted++
		}
		return nil
	})
	return evicted
}

// Usage returns the bytes and entries this cache currently contributes to the shared counters.
func (c *Cache) Usage() (bytes, count int64, err error) {
	err = c.exec(func() error {
		bytes, count = c.contribution.bytes, c.contribution.count
		return nil
	})
	return bytes, count, err
}

func (c *Cache) now() time.Time {
	return c.clock.Now()
}

func (c *Cache) safeID(raw string) string {
	return c.ids.ToSafe(raw)
}

// rawID recovers a raw identifier for a stored entry, falling back to its URL.
func (c *Cache) rawID(e domain.Entry) string {
	if raw, ok := c.ids.FromSafe(e.SafeIdentifier); ok {
		return raw
	}
	if e.Complete != nil {
		return e.Complete.Context.URL
	}
	if e.Partial != nil {
		return e.Partial.Context.URL
	}
	return ""
}

type discardSink struct{}

func (discardSink) Report(domain.DiagnosticEvent) {}
