package diskcache

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.trai.ch/mediacache/internal/core/domain"
)

// Read returns a copy of the entry stored for id, or nil when there is none.
// Expired variants are removed first and the remaining ones are touched.
// opts selects which payloads are loaded into the returned copy; a failure to
// load a requested payload is reported as a miss.
func (c *Cache) Read(id string, opts domain.FetchOptions) (*domain.Entry, error) {
	if id == "" {
		return nil, errors.Join(domain.ErrInvalidInput, domain.ErrMissingIdentifier)
	}

	var result *domain.Entry
	err := c.exec(func() error {
		result = c.read(id, opts)
		return nil
	})
	return result, err
}

func (c *Cache) read(id string, opts domain.FetchOptions) *domain.Entry {
	before, ok := c.lookup(id, c.safeID(id), true)
	if !ok {
		return nil
	}

	now := c.now()
	after := before.Clone()
	for _, kind := range []domain.VariantKind{domain.KindComplete, domain.KindPartial} {
		if v := after.Variant(kind); v != nil && v.Context.Expired(now) {
			c.removeVariant(after.SafeIdentifier, kind)
			after.SetVariant(kind, nil)
		}
	}
	if after.Empty() {
		c.store(before, after)
		return nil
	}

	c.touchEntry(&after, false, now)
	c.store(before, after)

	result := after.Clone()
	result.Identifier = id
	if err := c.hydrate(&result, opts); err != nil {
		c.logger.Warn(fmt.Sprintf("%s: treating %q as a miss: %v", c.name, id, err))
		return nil
	}
	return &result
}

func (c *Cache) hydrate(e *domain.Entry, opts domain.FetchOptions) error {
	if opts.WantsComplete(*e) {
		data, err := os.ReadFile(c.completePath(e.SafeIdentifier))
		if err != nil {
			return ioFailure(err, "failed to read complete variant", c.completePath(e.SafeIdentifier))
		}
		e.Complete.Data = data
	}

	if opts.WantsPartial(*e) {
		data, err := os.ReadFile(c.partialPath(e.SafeIdentifier))
		if err != nil {
			return ioFailure(err, "failed to read partial variant", c.partialPath(e.SafeIdentifier))
		}
		e.Partial.Data = data
	}

	if opts.WantsTempFile(*e) {
		tf, err := c.OpenTempFile(e.Identifier)
		if err != nil {
			return err
		}
		if e.Partial != nil {
			if err := tf.seed(c.partialPath(e.SafeIdentifier)); err != nil {
				_ = tf.Discard()
				return err
			}
		}
		e.TempFile = tf
	}
	return nil
}

// seed copies the file at path into the temp file so a download can resume.
func (t *TempFile) seed(path string) error {
	src, err := os.Open(path) //nolint:gosec // path is owned by the cache
	if err != nil {
		return ioFailure(err, "failed to open partial variant", path)
	}
	defer src.Close()

	if _, err := io.Copy(t, src); err != nil {
		return ioFailure(err, "failed to seed temp file", t.path)
	}
	return nil
}
