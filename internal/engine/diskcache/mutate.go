package diskcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/zerr"
)

// Write stores the variants carried by entry, applying the replacement
// policy to each against what is already stored. A variant with a zero TTL
// gets the cache default.
func (c *Cache) Write(entry domain.Entry, force bool) error {
	candidate, err := c.prepare(entry)
	if err != nil {
		return err
	}
	return c.exec(func() error {
		if err := c.mutable(); err != nil {
			return err
		}
		return c.write(candidate, force)
	})
}

// TouchOrWrite touches the entry if it is stored and writes it otherwise.
func (c *Cache) TouchOrWrite(entry domain.Entry, force bool) error {
	candidate, err := c.prepare(entry)
	if err != nil {
		return err
	}
	return c.exec(func() error {
		if err := c.mutable(); err != nil {
			return err
		}
		if c.touch(candidate.Identifier, false) {
			return nil
		}
		return c.write(candidate, force)
	})
}

// Touch re-stamps the last access time of an entry's variants. Only variants
// that update their expiry on access, or have never been accessed, are
// stamped unless forced. It reports whether the entry exists.
func (c *Cache) Touch(id string, forced bool) (bool, error) {
	if id == "" {
		return false, errors.Join(domain.ErrInvalidInput, domain.ErrMissingIdentifier)
	}
	found := false
	err := c.exec(func() error {
		found = c.touch(id, forced)
		return nil
	})
	return found, err
}

// Rename moves an entry to a new identifier, replacing any entry stored there.
// When the partial file cannot be moved but a complete one was, the partial is dropped.
func (c *Cache) Rename(oldID, newID string) error {
	if oldID == "" || newID == "" {
		return errors.Join(domain.ErrInvalidInput, domain.ErrMissingIdentifier)
	}
	return c.exec(func() error {
		if err := c.mutable(); err != nil {
			return err
		}
		return c.rename(oldID, newID)
	})
}

// Remove deletes one entry and its files.
func (c *Cache) Remove(id string) error {
	if id == "" {
		return errors.Join(domain.ErrInvalidInput, domain.ErrMissingIdentifier)
	}
	return c.exec(func() error {
		if err := c.mutable(); err != nil {
			return err
		}
		e, ok := c.lookup(id, c.safeID(id), false)
		if !ok {
			return zerr.With(zerr.Wrap(domain.ErrNotFound, "failed to remove entry"), "id", id)
		}
		c.evict(e)
		return nil
	})
}

// Clear deletes every entry once the cache has loaded.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.WaitUntilLoaded(ctx); err != nil {
		return err
	}
	return c.exec(func() error {
		if err := c.mutable(); err != nil {
			return err
		}
		n, bytes := c.manifest.Len(), c.manifest.TotalBytes()
		c.manifest.Clear()
		c.logger.Info(fmt.Sprintf("%s: cleared %d entries (%d bytes)", c.name, n, bytes))
		return nil
	})
}

// CopyToTemp copies the complete variant of id to a new file in the temp
// directory and returns its path. The caller owns the copy.
func (c *Cache) CopyToTemp(id string) (string, error) {
	if id == "" {
		return "", errors.Join(domain.ErrInvalidInput, domain.ErrMissingIdentifier)
	}
	var path string
	err := c.exec(func() error {
		e, ok := c.lookup(id, c.safeID(id), false)
		if !ok || e.Complete == nil {
			return zerr.With(zerr.Wrap(domain.ErrNotFound, "no complete variant"), "id", id)
		}

		f, err := os.CreateTemp(c.tempDir, "copy-*")
		if err != nil {
			return errors.Join(domain.ErrNotFound, ioFailure(err, "failed to create copy", c.tempDir))
		}
		path = f.Name()
		_ = f.Close()

		if err := copyFile(c.completePath(e.SafeIdentifier), path); err != nil {
			_ = os.Remove(path)
			path = ""
			return errors.Join(domain.ErrNotFound, err)
		}
		return nil
	})
	return path, err
}

// prepare validates a write candidate and fills in defaults on a copy of it.
func (c *Cache) prepare(entry domain.Entry) (domain.Entry, error) {
	if entry.Identifier == "" {
		return domain.Entry{}, errors.Join(domain.ErrInvalidInput, domain.ErrMissingIdentifier)
	}
	if entry.Empty() {
		return domain.Entry{}, zerr.With(zerr.Wrap(domain.ErrInvalidInput, "entry has no variants"), "id", entry.Identifier)
	}

	candidate := domain.Entry{Identifier: entry.Identifier, SafeIdentifier: c.safeID(entry.Identifier)}
	for _, kind := range []domain.VariantKind{domain.KindComplete, domain.KindPartial} {
		v := entry.Variant(kind)
		if v == nil {
			continue
		}
		if err := validateVariant(v, kind); err != nil {
			return domain.Entry{}, zerr.With(zerr.With(err, "id", entry.Identifier), "variant", kind.String())
		}
		cp := *v
		if cp.Context.TTL == 0 {
			cp.Context.TTL = c.defaultTTL
		}
		candidate.SetVariant(kind, &cp)
	}
	return candidate, nil
}

func validateVariant(v *domain.Variant, kind domain.VariantKind) error {
	sources := 0
	if v.Data != nil {
		sources++
	}
	if v.SourcePath != "" {
		sources++
	}
	if v.Container != nil {
		sources++
	}

	switch {
	case sources == 0:
		return zerr.Wrap(domain.ErrInvalidInput, "variant has no data")
	case sources > 1:
		return zerr.Wrap(domain.ErrInvalidInput, "variant has more than one data source")
	case v.Context.URL == "":
		return errors.Join(domain.ErrInvalidInput, domain.ErrMissingURL)
	case v.Context.Kind != kind:
		return zerr.Wrap(domain.ErrInvalidInput, "variant context kind mismatch")
	case !v.Context.Dimensions.Valid():
		return zerr.Wrap(domain.ErrInvalidInput, "variant dimensions must be at least one pixel")
	}
	return nil
}

func (c *Cache) write(candidate domain.Entry, force bool) error {
	safe := candidate.SafeIdentifier
	before, ok := c.lookup(candidate.Identifier, safe, false)
	if !ok {
		before = domain.Entry{Identifier: candidate.Identifier, SafeIdentifier: safe}
	}
	after := before.Stored()
	now := c.now()

	var firstErr error
	completeReplaced := false

	if in := candidate.Complete; in != nil {
		if before.Complete == nil || shouldReplace(force, false, before.Complete.Context, in.Context) {
			stored, err := c.persist(safe, in, now)
			if err != nil {
				return err
			}
			if stored != nil {
				after.Complete = stored
				completeReplaced = true
				// Complete data supersedes the candidate's partial for this call.
				candidate.Partial = nil
			}
		}
	}

	extra := completeReplaced && before.Complete != nil && before.Complete.Context.TreatAsPlaceholder
	if extra && after.Partial != nil && candidate.Partial == nil {
		c.removeVariant(safe, domain.KindPartial)
		after.Partial = nil
	}

	if in := candidate.Partial; in != nil {
		supersededByComplete := after.Complete != nil &&
			in.Context.Dimensions.Area() <= after.Complete.Context.Dimensions.Area()
		if !supersededByComplete &&
			(after.Partial == nil || shouldReplace(force, extra, after.Partial.Context, in.Context)) {
			stored, err := c.persist(safe, in, now)
			if err != nil {
				firstErr = err
			} else if stored != nil {
				after.Partial = stored
			}
		}
	}

	c.enforceFidelity(&after)
	c.capSize(&after)
	c.touchEntry(&after, false, now)
	c.store(before, after)
	c.gov.RequestPrune(c)

	return firstErr
}

// persist writes a variant's payload to its final path with a fresh access time.
// An empty payload stores nothing and returns a nil variant.
func (c *Cache) persist(safeID string, v *domain.Variant, now time.Time) (*domain.Variant, error) {
	staged, size, err := c.stage(v)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		_ = os.Remove(staged)
		return nil, nil //nolint:nilnil // an empty payload stores nothing
	}

	dst := c.variantPath(safeID, v.Context.Kind)

	ctx := v.Context
	ctx.LastAccess = now
	if err := c.install(staged, dst, ctx); err != nil {
		_ = os.Remove(staged)
		return nil, err
	}
	return &domain.Variant{Context: ctx, Size: size}, nil
}

// enforceFidelity drops a partial that does not exceed the complete variant's area.
func (c *Cache) enforceFidelity(e *domain.Entry) {
	if e.PartialRedundant() {
		c.removeVariant(e.SafeIdentifier, domain.KindPartial)
		e.Partial = nil
	}
}

// capSize drops variants larger than the per-entry limit.
func (c *Cache) capSize(e *domain.Entry) {
	if c.maxEntryBytes <= 0 {
		return
	}
	for _, kind := range []domain.VariantKind{domain.KindComplete, domain.KindPartial} {
		v := e.Variant(kind)
		if v == nil || v.Size <= c.maxEntryBytes {
			continue
		}
		c.removeVariant(e.SafeIdentifier, kind)
		e.SetVariant(kind, nil)
		c.diag.Report(domain.DiagnosticEvent{
			Kind:       domain.DiagnosticOversizeEvicted,
			Cache:      c.name,
			Identifier: e.Identifier,
			Variant:    kind,
			Bytes:      v.Size,
			Limit:      c.maxEntryBytes,
			Err:        domain.ErrCapacityExceeded,
		})
	}
}

// touchEntry stamps now on eligible variants and persists the new access time.
func (c *Cache) touchEntry(e *domain.Entry, forced bool, now time.Time) {
	for _, kind := range []domain.VariantKind{domain.KindComplete, domain.KindPartial} {
		v := e.Variant(kind)
		if v == nil {
			continue
		}
		if !forced && !v.Context.UpdateExpiryOnAccess && !v.Context.LastAccess.IsZero() {
			continue
		}
		if v.Context.LastAccess.Equal(now) {
			continue
		}
		v.Context.LastAccess = now
		if err := c.meta.Write(c.variantPath(e.SafeIdentifier, kind), v.Context); err != nil {
			c.logger.Warn(fmt.Sprintf("%s: failed to record access to %q: %v", c.name, e.Identifier, err))
		}
	}
}

func (c *Cache) touch(id string, forced bool) bool {
	before, ok := c.lookup(id, c.safeID(id), true)
	if !ok {
		return false
	}
	after := before.Clone()
	c.touchEntry(&after, forced, c.now())
	c.store(before, after)
	return true
}

func (c *Cache) rename(oldID, newID string) error {
	oldSafe, newSafe := c.safeID(oldID), c.safeID(newID)
	if oldSafe == newSafe {
		return nil
	}

	src, ok := c.lookup(oldID, oldSafe, false)
	if !ok {
		return zerr.With(zerr.Wrap(domain.ErrNotFound, "failed to rename entry"), "id", oldID)
	}
	dst, hasDst := c.lookup(newID, newSafe, false)

	// Source files are staged first so a failure leaves the destination intact.
	moved := domain.Entry{Identifier: newID, SafeIdentifier: newSafe}
	staged := make(map[domain.VariantKind]string, 2)
	for _, v := range []*domain.Variant{src.Complete, src.Partial} {
		if v == nil {
			continue
		}
		kind := v.Context.Kind
		path, err := c.stageVariant(oldSafe, v)
		if err != nil {
			if moved.Complete == nil {
				return err
			}
			c.logger.Warn(fmt.Sprintf("%s: dropped partial of %q during rename: %v", c.name, oldID, err))
			c.removeVariant(oldSafe, kind)
			continue
		}
		staged[kind] = path
		moved.SetVariant(kind, v)
	}

	for _, kind := range []domain.VariantKind{domain.KindComplete, domain.KindPartial} {
		path, ok := staged[kind]
		if !ok {
			continue
		}
		err := os.Rename(path, c.variantPath(newSafe, kind))
		if err == nil {
			continue
		}
		err = ioFailure(err, "failed to install renamed file", path)
		if kind == domain.KindComplete {
			for k, p := range staged {
				_ = os.Rename(p, c.variantPath(oldSafe, k))
			}
			return err
		}
		c.logger.Warn(fmt.Sprintf("%s: dropped partial of %q during rename: %v", c.name, oldID, err))
		_ = os.Remove(path)
		moved.Partial = nil
	}

	if hasDst {
		for _, kind := range []domain.VariantKind{domain.KindComplete, domain.KindPartial} {
			if dst.Variant(kind) != nil && moved.Variant(kind) == nil {
				c.removeVariant(newSafe, kind)
			}
		}
		c.store(dst, domain.Entry{Identifier: newID, SafeIdentifier: newSafe})
	}

	c.store(src, domain.Entry{Identifier: oldID, SafeIdentifier: oldSafe})
	c.store(domain.Entry{Identifier: newID, SafeIdentifier: newSafe}, moved)
	return nil
}

// stageVariant moves a stored variant's file to a fresh staging file and
// returns its path. The source file is untouched on failure.
func (c *Cache) stageVariant(safeID string, v *domain.Variant) (string, error) {
	f, err := os.CreateTemp(c.dir, stagingPrefix+"*")
	if err != nil {
		return "", ioFailure(err, "failed to create staging file", c.dir)
	}
	path := f.Name()
	_ = f.Close()

	copied, err := moveFile(c.variantPath(safeID, v.Context.Kind), path)
	if err == nil && copied {
		err = c.meta.Write(path, v.Context)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
