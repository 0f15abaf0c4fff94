package diskcache

import (
	"errors"
	"os"
	"sync"

	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/zerr"
)

var _ domain.TempFileHandle = (*TempFile)(nil)

// TempFile collects bytes for an entry before they are accepted into the cache.
type TempFile struct {
	cache      *Cache
	identifier string
	path       string

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// OpenTempFile creates a temp file whose bytes can later be finalized as a
// variant of id.
func (c *Cache) OpenTempFile(id string) (*TempFile, error) {
	if id == "" {
		return nil, errors.Join(domain.ErrInvalidInput, domain.ErrMissingIdentifier)
	}

	// Keep the name short; the identifier may be long.
	prefix := c.safeID(id)
	if len(prefix) > 32 {
		prefix = prefix[:32]
	}

	f, err := os.CreateTemp(c.tempDir, c.name+"-"+prefix+"-*"+domain.PartialSuffix)
	if err != nil {
		return nil, ioFailure(err, "failed to create temp file", c.tempDir)
	}
	return &TempFile{cache: c, identifier: id, path: f.Name(), file: f}, nil
}

// Write appends p to the temp file.
func (t *TempFile) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, zerr.With(zerr.Wrap(domain.ErrTempFileClosed, "write after close"), "path", t.path)
	}
	n, err := t.file.Write(p)
	if err != nil {
		return n, ioFailure(err, "failed to write temp file", t.path)
	}
	return n, nil
}

// Path returns the temp file's location.
func (t *TempFile) Path() string {
	return t.path
}

// Identifier returns the raw identifier the temp file will be stored under.
func (t *TempFile) Identifier() string {
	return t.identifier
}

// Finalize hands the temp file to its cache. See Cache.FinalizeTempFile.
func (t *TempFile) Finalize(ctx domain.EntryContext) error {
	return t.cache.FinalizeTempFile(t, ctx)
}

// Discard closes and deletes the temp file.
func (t *TempFile) Discard() error {
	if err := t.close(); err != nil && !errors.Is(err, domain.ErrTempFileClosed) {
		return err
	}
	return removeFile(t.path)
}

// close stops further writes. Closing twice reports domain.ErrTempFileClosed.
func (t *TempFile) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return zerr.With(zerr.Wrap(domain.ErrTempFileClosed, "temp file already closed"), "path", t.path)
	}
	t.closed = true
	if err := t.file.Close(); err != nil {
		return ioFailure(err, "failed to close temp file", t.path)
	}
	return nil
}

// FinalizeTempFile moves the temp file into the cache as the variant ctx
// describes. Placeholder partials, empty files and data of lower fidelity
// than what is stored are discarded without error. The temp file is consumed
// either way.
func (c *Cache) FinalizeTempFile(t *TempFile, ctx domain.EntryContext) error {
	if t == nil || t.cache != c {
		return zerr.Wrap(domain.ErrInvalidInput, "temp file belongs to another cache")
	}
	if err := t.close(); err != nil {
		return err
	}

	err := c.exec(func() error {
		if err := c.mutable(); err != nil {
			return err
		}
		return c.finalize(t, ctx)
	})
	if err != nil {
		_ = removeFile(t.path)
	}
	return err
}

func (c *Cache) finalize(t *TempFile, ctx domain.EntryContext) error {
	if ctx.URL == "" {
		return errors.Join(domain.ErrInvalidInput, domain.ErrMissingURL)
	}
	if !ctx.Dimensions.Valid() {
		return zerr.Wrap(domain.ErrInvalidInput, "dimensions must be at least one pixel")
	}
	if ctx.Kind == domain.KindPartial && ctx.TreatAsPlaceholder {
		return removeFile(t.path)
	}

	info, err := os.Stat(t.path)
	if err != nil {
		return ioFailure(err, "failed to stat temp file", t.path)
	}
	size := info.Size()
	if size == 0 {
		return removeFile(t.path)
	}

	safe := c.safeID(t.identifier)
	before, ok := c.lookup(t.identifier, safe, false)
	if !ok {
		before = domain.Entry{Identifier: t.identifier, SafeIdentifier: safe}
	}
	if finalizeBlocked(before, ctx, size) {
		return removeFile(t.path)
	}

	now := c.now()
	if ctx.TTL == 0 {
		ctx.TTL = c.defaultTTL
	}
	ctx = ctx.AsKind(ctx.Kind)
	ctx.LastAccess = now

	after := before.Stored()
	if ctx.Kind == domain.KindComplete && after.Partial != nil {
		// The stored partial does not exceed the incoming area, or the
		// write would have been blocked.
		c.removeVariant(safe, domain.KindPartial)
		after.Partial = nil
	}

	if err := c.install(t.path, c.variantPath(safe, ctx.Kind), ctx); err != nil {
		c.store(before, after)
		return err
	}
	after.SetVariant(ctx.Kind, &domain.Variant{Context: ctx, Size: size})

	c.enforceFidelity(&after)
	c.capSize(&after)
	c.store(before, after)
	c.gov.RequestPrune(c)
	return nil
}
