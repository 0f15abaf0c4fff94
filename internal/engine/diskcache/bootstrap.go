package diskcache

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/engine/manifest"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// parseResult is the outcome of inspecting one file in the cache directory.
type parseResult struct {
	name    string
	safeID  string
	kind    domain.VariantKind
	variant *domain.Variant
}

// draft accumulates parse results before the manifest is built.
type draft struct {
	entries map[string]*domain.Entry
	doomed  []string
	bytes   int64
}

// bootstrap rebuilds the manifest from the cache directory.
// Files are parsed by a bounded pool and merged by this goroutine alone; the
// result is published on the executor.
func (c *Cache) bootstrap(ctx context.Context) {
	defer c.bootWG.Done()
	start := c.now()

	files, err := os.ReadDir(c.dir)
	if err != nil {
		c.failBootstrap(ioFailure(err, "failed to list cache directory", c.dir))
		return
	}

	results := make(chan parseResult)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	go func() {
		defer close(results)
		for _, f := range files {
			if f.IsDir() || gctx.Err() != nil {
				continue
			}
			name := f.Name()
			g.Go(func() error {
				r := c.parseFile(name, start)
				select {
				case results <- r:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		_ = g.Wait()
	}()

	d := &draft{entries: make(map[string]*domain.Entry)}
	for r := range results {
		d.add(r)
	}
	if ctx.Err() != nil {
		return
	}

	entries := d.sorted(c)
	c.do(func() {
		if c.closed {
			return
		}
		c.publish(entries, d, start)
	})
}

// parseFile reads one file's size and metadata. A nil variant marks the file
// for deletion.
func (c *Cache) parseFile(name string, now time.Time) parseResult {
	r := parseResult{name: name, safeID: name, kind: domain.KindComplete}
	if trimmed, ok := strings.CutSuffix(name, domain.PartialSuffix); ok {
		r.safeID, r.kind = trimmed, domain.KindPartial
	}
	if strings.HasPrefix(name, ".") || r.safeID == "" {
		return r
	}

	path := filepath.Join(c.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return r
	}

	ctx, err := c.meta.Read(path, r.kind)
	if err != nil || ctx.Expired(now) {
		return r
	}

	r.variant = &domain.Variant{Context: ctx, Size: info.Size()}
	return r
}

func (d *draft) add(r parseResult) {
	if r.variant == nil {
		d.doomed = append(d.doomed, r.name)
		return
	}

	e, ok := d.entries[r.safeID]
	if !ok {
		e = &domain.Entry{SafeIdentifier: r.safeID}
		d.entries[r.safeID] = e
	}
	e.SetVariant(r.kind, r.variant)
	d.bytes += r.variant.Size

	if e.PartialRedundant() {
		d.doomed = append(d.doomed, r.safeID+domain.PartialSuffix)
		d.bytes -= e.Partial.Size
		e.Partial = nil
	}
}

// sorted orders entries by last access, newest first, entries never accessed
// last, ties broken by safe identifier.
func (d *draft) sorted(c *Cache) []domain.Entry {
	entries := make([]domain.Entry, 0, len(d.entries))
	for _, e := range d.entries {
		e.Identifier = c.rawID(*e)
		entries = append(entries, *e)
	}

	slices.SortFunc(entries, func(a, b domain.Entry) int {
		ta, tb := a.LastAccess(), b.LastAccess()
		switch {
		case ta.IsZero() && !tb.IsZero():
			return 1
		case !ta.IsZero() && tb.IsZero():
			return -1
		case !ta.Equal(tb):
			return tb.Compare(ta)
		}
		return cmp.Compare(a.SafeIdentifier, b.SafeIdentifier)
	})
	return entries
}

// publish installs the loaded manifest. It runs on the executor.
func (c *Cache) publish(entries []domain.Entry, d *draft, start time.Time) {
	m := manifest.Load(entries, c.evicted)

	// Entries changed while loading are re-read so their latest state wins.
	for safeID, raw := range c.dirty {
		m.Take(safeID)
		e := c.diskEntry(raw, safeID)
		c.enforceFidelity(&e)
		if !e.Empty() {
			m.Put(e)
		}
	}

	removed := 0
	for _, name := range d.doomed {
		safeID := strings.TrimSuffix(name, domain.PartialSuffix)
		if _, changed := c.dirty[safeID]; changed {
			continue
		}
		if err := removeFile(filepath.Join(c.dir, name)); err != nil {
			c.logger.Warn(fmt.Sprintf("%s: %v", c.name, err))
			continue
		}
		removed++
	}

	c.manifest = m
	c.state = stateReady
	c.dirty = nil

	// Settle the shared counters, including decrements held back while loading.
	target := usage{bytes: m.TotalBytes(), count: int64(m.Len())}
	c.gov.Counters().Add(target.bytes-c.contribution.bytes, target.count-c.contribution.count)
	c.contribution = target
	c.deferred = usage{}

	c.markLoaded()
	c.logger.Info(fmt.Sprintf("%s: loaded %d entries (%s) in %s, removed %d stale files",
		c.name, m.Len(), humanize.IBytes(uint64(max(target.bytes, 0))), c.now().Sub(start).Round(time.Millisecond), removed))
	c.gov.RequestPrune(c)
}

// failBootstrap leaves the cache without a manifest for the rest of its life.
func (c *Cache) failBootstrap(err error) {
	err = zerr.With(err, "cache", c.name)
	c.do(func() {
		if c.closed {
			return
		}
		c.state = stateFailed
		c.dirty = nil
		c.deferred = usage{}
		c.markLoaded()
	})
	c.diag.Report(domain.DiagnosticEvent{
		Kind:  domain.DiagnosticBootstrapFailed,
		Cache: c.name,
		Err:   err,
	})
}
