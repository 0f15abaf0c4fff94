package diskcache

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/mediacache/internal/core/domain"
)

// Inspect returns a snapshot of the manifest, most recently used first.
// It waits for the cache to load; a cache that failed to load reports Loaded false.
func (c *Cache) Inspect(ctx context.Context, opts domain.InspectOptions) (domain.Inspection, error) {
	if err := c.WaitUntilLoaded(ctx); err != nil {
		return domain.Inspection{}, err
	}

	snapshot := domain.Inspection{Cache: c.name}
	err := c.exec(func() error {
		if c.state != stateReady {
			return nil
		}
		snapshot.Loaded = true
		snapshot.TotalBytes = c.manifest.TotalBytes()
		for e := range c.manifest.All() {
			if e.Complete != nil {
				snapshot.Complete = append(snapshot.Complete, c.inspected(e, e.Complete))
			}
			if e.Partial != nil {
				snapshot.Partial = append(snapshot.Partial, c.inspected(e, e.Partial))
			}
		}
		return nil
	})
	if err != nil {
		return domain.Inspection{}, err
	}

	// Hash outside the executor; the snapshot may trail concurrent writes.
	if opts.Checksums {
		for _, list := range [][]domain.InspectedEntry{snapshot.Complete, snapshot.Partial} {
			for i := range list {
				if err := ctx.Err(); err != nil {
					return domain.Inspection{}, err
				}
				list[i].Checksum = checksum(list[i].Path)
			}
		}
	}
	return snapshot, nil
}

func (c *Cache) inspected(e domain.Entry, v *domain.Variant) domain.InspectedEntry {
	return domain.InspectedEntry{
		Identifier:     e.Identifier,
		SafeIdentifier: e.SafeIdentifier,
		Path:           c.variantPath(e.SafeIdentifier, v.Context.Kind),
		URL:            v.Context.URL,
		Dimensions:     v.Context.Dimensions,
		Bytes:          v.Size,
		LastAccess:     v.Context.LastAccess,
		TTL:            v.Context.TTL,
		Placeholder:    v.Context.TreatAsPlaceholder,
		Animated:       v.Context.Animated,
	}
}

// checksum returns the hex xxhash of the file at path, or "" when it cannot be read.
func checksum(path string) string {
	f, err := os.Open(path) //nolint:gosec // path is owned by the cache
	if err != nil {
		return ""
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
