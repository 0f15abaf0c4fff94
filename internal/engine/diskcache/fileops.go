package diskcache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/zerr"
)

// stagingPrefix names in-progress writes inside the cache directory.
// Safe identifiers never start with a dot, so leftovers from a crash fail to
// decode on the next load and are removed.
const stagingPrefix = ".staging-"

func ioFailure(err error, msg, path string) error {
	return errors.Join(domain.ErrIOFailure, zerr.With(zerr.Wrap(err, msg), "path", path))
}

// stage writes the variant's payload to a new file in the cache directory
// and returns its path and size.
func (c *Cache) stage(v *domain.Variant) (string, int64, error) {
	f, err := os.CreateTemp(c.dir, stagingPrefix+"*")
	if err != nil {
		return "", 0, ioFailure(err, "failed to create staging file", c.dir)
	}
	path := f.Name()

	n, err := writePayload(f, v)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, ioFailure(err, "failed to write staging file", path)
	}
	return path, n, nil
}

func writePayload(w io.Writer, v *domain.Variant) (int64, error) {
	switch {
	case v.Data != nil:
		n, err := w.Write(v.Data)
		return int64(n), err
	case v.Container != nil:
		return v.Container.WriteTo(w)
	case v.SourcePath != "":
		src, err := os.Open(v.SourcePath)
		if err != nil {
			return 0, err
		}
		defer src.Close()
		return io.Copy(w, src)
	default:
		return 0, domain.ErrInvalidInput
	}
}

// install moves src over dst and stamps ctx on the result. dst is left
// untouched when stamping the staged file fails before the move.
func (c *Cache) install(src, dst string, ctx domain.EntryContext) error {
	stampErr := c.meta.Write(src, ctx)
	if stampErr != nil && errors.Is(stampErr, domain.ErrMissingURL) {
		return stampErr
	}

	copied, err := moveFile(src, dst)
	if err != nil {
		return err
	}

	if copied || stampErr != nil {
		if err := c.meta.Write(dst, ctx); err != nil {
			_ = os.Remove(dst)
			return err
		}
	}
	return nil
}

// moveFile renames src to dst, copying across filesystems when a rename is
// not possible. It reports whether a copy was made.
func moveFile(src, dst string) (bool, error) {
	if err := os.Rename(src, dst); err == nil {
		return false, nil
	}

	if err := copyFile(src, dst); err != nil {
		return true, err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return true, ioFailure(err, "failed to remove moved file", src)
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // paths are owned by the cache
	if err != nil {
		return ioFailure(err, "failed to open file", src)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), stagingPrefix+"*")
	if err != nil {
		return ioFailure(err, "failed to create file", dst)
	}

	_, err = io.Copy(tmp, in)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return ioFailure(err, "failed to copy file", dst)
	}
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ioFailure(err, "failed to remove file", path)
	}
	return nil
}

func (c *Cache) completePath(safeID string) string {
	return domain.CompletePath(c.dir, safeID)
}

func (c *Cache) partialPath(safeID string) string {
	return domain.PartialPath(c.dir, safeID)
}

func (c *Cache) variantPath(safeID string, kind domain.VariantKind) string {
	if kind == domain.KindPartial {
		return c.partialPath(safeID)
	}
	return c.completePath(safeID)
}

// removeVariant deletes one variant's file, logging failures.
func (c *Cache) removeVariant(safeID string, kind domain.VariantKind) {
	if err := removeFile(c.variantPath(safeID, kind)); err != nil {
		c.logger.Warn(fmt.Sprintf("%s: %v", c.name, err))
	}
}

func (c *Cache) removeFiles(e domain.Entry) {
	if e.Complete != nil {
		c.removeVariant(e.SafeIdentifier, domain.KindComplete)
	}
	if e.Partial != nil {
		c.removeVariant(e.SafeIdentifier, domain.KindPartial)
	}
}

// diskEntry reads an entry straight from its files. Variants whose file is
// missing, empty or lacks valid metadata are left out.
func (c *Cache) diskEntry(raw, safeID string) domain.Entry {
	e := domain.Entry{Identifier: raw, SafeIdentifier: safeID}
	for _, kind := range []domain.VariantKind{domain.KindComplete, domain.KindPartial} {
		path := c.variantPath(safeID, kind)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			continue
		}
		ctx, err := c.meta.Read(path, kind)
		if err != nil {
			continue
		}
		e.SetVariant(kind, &domain.Variant{Context: ctx, Size: info.Size()})
	}
	if e.Identifier == "" {
		e.Identifier = c.rawID(e)
	}
	return e
}
