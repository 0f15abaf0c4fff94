// Package app implements the application layer for mediacache.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/core/ports"
	"go.trai.ch/mediacache/internal/engine/budget"
	"go.trai.ch/mediacache/internal/engine/diskcache"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// jsonSwitcher is implemented by loggers that can switch to JSON output.
type jsonSwitcher interface {
	SetJSON(enable bool)
}

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	metadata     ports.MetadataStore
	identifiers  ports.IdentifierCodec
	diagnostics  ports.DiagnosticSink
	clock        clockwork.Clock
	configPath   string
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	metadata ports.MetadataStore,
	identifiers ports.IdentifierCodec,
	diagnostics ports.DiagnosticSink,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		metadata:     metadata,
		identifiers:  identifiers,
		diagnostics:  diagnostics,
		clock:        clockwork.NewRealClock(),
		configPath:   domain.DefaultConfigPath(),
	}
}

// WithConfigPath sets the configuration file to load.
func (a *App) WithConfigPath(path string) *App {
	if path != "" {
		a.configPath = path
	}
	return a
}

// WithClock replaces the clock used for access times and expiry.
// This is primarily used for testing.
func (a *App) WithClock(clock clockwork.Clock) *App {
	a.clock = clock
	return a
}

// Session holds the caches opened from one configuration.
type Session struct {
	Config   *domain.Config
	Governor *budget.Governor
	caches   []*diskcache.Cache
}

// Open loads the configuration and opens every configured cache, waiting
// until all of them finished loading.
func (a *App) Open(ctx context.Context) (*Session, error) {
	cfg, err := a.configLoader.Load(a.configPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	if cfg.JSONLogs {
		if sw, ok := a.logger.(jsonSwitcher); ok {
			sw.SetJSON(true)
		}
	}

	s := &Session{
		Config:   cfg,
		Governor: budget.NewGovernor(cfg.Budget, a.logger),
	}

	for _, cc := range cfg.Caches {
		c, err := diskcache.New(diskcache.Options{
			Name:          cc.Name,
			Dir:           cc.Dir,
			TempDir:       cfg.TempDir,
			MaxEntryBytes: cc.MaxEntryBytes,
			DefaultTTL:    cc.DefaultTTL,
			Workers:       cfg.BootstrapWorkers,
			Governor:      s.Governor,
			Metadata:      a.metadata,
			Identifiers:   a.identifiers,
			Diagnostics:   a.diagnostics,
			Logger:        a.logger,
			Clock:         a.clock,
		})
		if err != nil {
			return nil, errors.Join(err, s.Close())
		}
		s.caches = append(s.caches, c)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.caches {
		g.Go(func() error {
			return c.WaitUntilLoaded(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

// Cache returns the named cache. An empty name selects the first configured cache.
func (s *Session) Cache(name string) (*diskcache.Cache, error) {
	if name == "" && len(s.caches) > 0 {
		return s.caches[0], nil
	}
	for _, c := range s.caches {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, zerr.With(zerr.Wrap(domain.ErrCacheNotConfigured, "unknown cache"), "cache", name)
}

// Caches returns the caches selected by name, or all of them for an empty name.
func (s *Session) Caches(name string) ([]*diskcache.Cache, error) {
	if name == "" {
		return s.caches, nil
	}
	c, err := s.Cache(name)
	if err != nil {
		return nil, err
	}
	return []*diskcache.Cache{c}, nil
}

// Close closes every cache and stops the governor. Files stay on disk.
func (s *Session) Close() error {
	var errs error
	for _, c := range s.caches {
		errs = errors.Join(errs, c.Close())
	}
	s.Governor.Close()
	return errs
}

func (a *App) withSession(ctx context.Context, fn func(*Session) error) (err error) {
	s, err := a.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(s)
}

func (a *App) withCache(ctx context.Context, name string, fn func(*diskcache.Cache) error) error {
	return a.withSession(ctx, func(s *Session) error {
		c, err := s.Cache(name)
		if err != nil {
			return err
		}
		return fn(c)
	})
}

// InspectOptions configuration for the Inspect method.
type InspectOptions struct {
	Cache     string
	Checksums bool
}

// Inspect returns a snapshot of the selected caches.
func (a *App) Inspect(ctx context.Context, opts InspectOptions) ([]domain.Inspection, error) {
	var out []domain.Inspection
	err := a.withSession(ctx, func(s *Session) error {
		caches, err := s.Caches(opts.Cache)
		if err != nil {
			return err
		}
		for _, c := range caches {
			snap, err := c.Inspect(ctx, domain.InspectOptions{Checksums: opts.Checksums})
			if err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	return out, err
}

// Get reads an entry with its bytes. With allowPartial, an entry that only
// holds a partial variant is returned with the partial bytes.
func (a *App) Get(ctx context.Context, cache, id string, allowPartial bool) (*domain.Entry, error) {
	opts := domain.FetchComplete
	if allowPartial {
		opts |= domain.FetchPartialIfNoComplete
	}

	var entry *domain.Entry
	err := a.withCache(ctx, cache, func(c *diskcache.Cache) error {
		e, err := c.Read(id, opts)
		if err != nil {
			return err
		}
		if e == nil || (e.Complete == nil && !allowPartial) {
			return zerr.With(zerr.Wrap(domain.ErrNotFound, "no cached data"), "id", id)
		}
		entry = e
		return nil
	})
	return entry, err
}

// Export copies the complete variant of id to dst.
func (a *App) Export(ctx context.Context, cache, id, dst string) error {
	return a.withCache(ctx, cache, func(c *diskcache.Cache) error {
		tmp, err := c.CopyToTemp(id)
		if err != nil {
			return err
		}
		defer func() {
			_ = os.Remove(tmp)
		}()

		if err := os.Rename(tmp, dst); err == nil {
			return nil
		}
		data, err := os.ReadFile(tmp) //nolint:gosec // path was created by the cache
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to read copy"), "path", tmp)
		}
		if err := os.WriteFile(dst, data, domain.FilePerm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to write output"), "path", dst)
		}
		return nil
	})
}

// PutOptions configuration for the Put method.
type PutOptions struct {
	Cache string
	ID    string

	// Source is the file to store. "-" streams Stdin through a temp file.
	Source string
	Stdin  io.Reader

	URL            string
	Width          float64
	Height         float64
	TTL            time.Duration
	ImageType      string
	Partial        bool
	Placeholder    bool
	Animated       bool
	NoTouch        bool
	LastModified   string
	ExpectedLength int64
	Force          bool
}

func (o PutOptions) context() domain.EntryContext {
	kind := domain.KindComplete
	if o.Partial {
		kind = domain.KindPartial
	}
	url := o.URL
	if url == "" {
		url = o.ID
	}
	ctx := domain.EntryContext{
		Kind:                  kind,
		URL:                   url,
		TTL:                   o.TTL,
		UpdateExpiryOnAccess:  !o.NoTouch,
		Dimensions:            domain.Dimensions{Width: o.Width, Height: o.Height},
		Animated:              o.Animated,
		TreatAsPlaceholder:    o.Placeholder,
		ImageType:             o.ImageType,
		LastModified:          o.LastModified,
		ExpectedContentLength: o.ExpectedLength,
	}
	return ctx.AsKind(kind)
}

// Put stores a file as a variant of an entry.
func (a *App) Put(ctx context.Context, opts PutOptions) error {
	if opts.ID == "" {
		return errors.Join(domain.ErrInvalidInput, domain.ErrMissingIdentifier)
	}
	entryCtx := opts.context()

	return a.withCache(ctx, opts.Cache, func(c *diskcache.Cache) error {
		if opts.Source == "-" {
			return a.stream(c, opts, entryCtx)
		}

		src, err := filepath.Abs(opts.Source)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to resolve source"), "path", opts.Source)
		}
		entry := domain.Entry{Identifier: opts.ID}
		entry.SetVariant(entryCtx.Kind, &domain.Variant{Context: entryCtx, SourcePath: src})
		if err := c.Write(entry, opts.Force); err != nil {
			return err
		}
		a.logger.Info(fmt.Sprintf("stored %s variant of %q in %s", entryCtx.Kind, opts.ID, c.Name()))
		return nil
	})
}

func (a *App) stream(c *diskcache.Cache, opts PutOptions, entryCtx domain.EntryContext) error {
	if opts.Stdin == nil {
		return zerr.Wrap(domain.ErrInvalidInput, "no input to stream")
	}
	tf, err := c.OpenTempFile(opts.ID)
	if err != nil {
		return err
	}
	if _, err := io.Copy(tf, opts.Stdin); err != nil {
		return errors.Join(err, tf.Discard())
	}
	if err := tf.Finalize(entryCtx); err != nil {
		return err
	}
	a.logger.Info(fmt.Sprintf("finalized %s variant of %q in %s", entryCtx.Kind, opts.ID, c.Name()))
	return nil
}

// Remove deletes an entry.
func (a *App) Remove(ctx context.Context, cache, id string) error {
	return a.withCache(ctx, cache, func(c *diskcache.Cache) error {
		return c.Remove(id)
	})
}

// Move renames an entry, replacing whatever is stored under the new identifier.
func (a *App) Move(ctx context.Context, cache, oldID, newID string) error {
	return a.withCache(ctx, cache, func(c *diskcache.Cache) error {
		return c.Rename(oldID, newID)
	})
}

// Touch refreshes the access time of an entry. It reports whether the entry exists.
func (a *App) Touch(ctx context.Context, cache, id string, force bool) (bool, error) {
	found := false
	err := a.withCache(ctx, cache, func(c *diskcache.Cache) error {
		var err error
		found, err = c.Touch(id, force)
		return err
	})
	return found, err
}

// Clear deletes every entry of the selected caches. An empty name clears all caches.
func (a *App) Clear(ctx context.Context, cache string) error {
	return a.withSession(ctx, func(s *Session) error {
		caches, err := s.Caches(cache)
		if err != nil {
			return err
		}
		var errs error
		for _, c := range caches {
			if err := c.Clear(ctx); err != nil {
				errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to clear %s", c.Name())))
			}
		}
		return errs
	})
}

// Prune evicts least recently used entries until the configured budget is met.
// It returns the number of entries evicted since the caches were opened.
func (a *App) Prune(ctx context.Context) (int64, error) {
	var evicted int64
	err := a.withSession(ctx, func(s *Session) error {
		s.Governor.PruneNow(nil)
		evicted = s.Governor.Evicted()
		return nil
	})
	return evicted, err
}

// CacheStats is the usage of one cache.
type CacheStats struct {
	Name   string
	Dir    string
	Loaded bool
	Bytes  int64
	Count  int64
}

// Stats is the usage of all caches against the budget.
type Stats struct {
	Budget domain.Budget
	Bytes  int64
	Count  int64
	Caches []CacheStats
}

// Stats reports usage of every configured cache.
func (a *App) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := a.withSession(ctx, func(s *Session) error {
		stats.Budget = s.Governor.Budget()
		stats.Bytes = s.Governor.Counters().Bytes()
		stats.Count = s.Governor.Counters().Count()

		for _, c := range s.caches {
			snap, err := c.Inspect(ctx, domain.InspectOptions{})
			if err != nil {
				return err
			}
			bytes, count, err := c.Usage()
			if err != nil {
				return err
			}
			stats.Caches = append(stats.Caches, CacheStats{
				Name:   c.Name(),
				Dir:    c.Dir(),
				Loaded: snap.Loaded,
				Bytes:  bytes,
				Count:  count,
			})
		}
		return nil
	})
	return stats, err
}
