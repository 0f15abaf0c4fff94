package diskcache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/core/ports"
	"go.trai.ch/mediacache/internal/core/ports/mocks"
	"go.trai.ch/mediacache/internal/engine/diskcache"
	"go.uber.org/mock/gomock"
)

// plant writes a variant file with metadata the way a previous run would have left it.
func plant(t *testing.T, e *env, name, data string, ctx domain.EntryContext) {
	t.Helper()
	require.NoError(t, os.MkdirAll(e.dir, domain.DirPerm))
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), domain.FilePerm))
	require.NoError(t, e.meta.Write(path, ctx))
}

func accessedAt(kind domain.VariantKind, side float64, url string, at time.Time) domain.EntryContext {
	ctx := ctxFor(kind, side, url)
	ctx.LastAccess = at
	return ctx
}

func identifiers(list []domain.InspectedEntry) []string {
	ids := make([]string, 0, len(list))
	for _, ie := range list {
		ids = append(ids, ie.Identifier)
	}
	return ids
}

func TestBootstrap_Order(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	plant(t, e, "old", "1", accessedAt(domain.KindComplete, 10, "https://img.test/old", epoch.Add(-3*time.Hour)))
	plant(t, e, "new", "22", accessedAt(domain.KindComplete, 10, "https://img.test/new", epoch.Add(-time.Hour)))
	plant(t, e, "mid", "333", accessedAt(domain.KindComplete, 10, "https://img.test/mid", epoch.Add(-2*time.Hour)))
	plant(t, e, "never", "4444", ctxFor(domain.KindComplete, 10, "https://img.test/never"))
	plant(t, e, "tie-b", "5", accessedAt(domain.KindComplete, 10, "https://img.test/tie-b", epoch.Add(-30*time.Minute)))
	plant(t, e, "tie-a", "6", accessedAt(domain.KindComplete, 10, "https://img.test/tie-a", epoch.Add(-30*time.Minute)))

	c := e.open()

	snap, err := c.Inspect(context.Background(), domain.InspectOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"tie-a", "tie-b", "new", "mid", "old", "never"}, identifiers(snap.Complete))
	assert.Equal(t, int64(12), snap.TotalBytes)
	assertConsistent(t, e, c)
}

func TestBootstrap_RemovesStaleFiles(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	plant(t, e, "fresh", "fresh", accessedAt(domain.KindComplete, 10, "https://img.test/fresh", epoch.Add(-time.Hour)))

	expired := accessedAt(domain.KindComplete, 10, "https://img.test/expired", epoch.Add(-48*time.Hour))
	plant(t, e, "expired", "expired", expired)

	// A partial no larger than its complete is redundant.
	plant(t, e, "dup", "complete", accessedAt(domain.KindComplete, 200, "https://img.test/dup", epoch))
	plant(t, e, "dup"+domain.PartialSuffix, "partial", accessedAt(domain.KindPartial, 100, "https://img.test/dup", epoch))

	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "stray"), []byte("no metadata"), domain.FilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "empty"), nil, domain.FilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, ".staging-123"), []byte("leftover"), domain.FilePerm))
	require.NoError(t, os.Mkdir(filepath.Join(e.dir, "sub"), domain.DirPerm))

	c := e.open()

	snap, err := c.Inspect(context.Background(), domain.InspectOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fresh", "dup"}, identifiers(snap.Complete))
	assert.Empty(t, snap.Partial)

	names := []string{}
	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	for _, de := range entries {
		names = append(names, de.Name())
	}
	assert.ElementsMatch(t, []string{"fresh", "dup", "sub"}, names)

	assert.Equal(t, int64(len("fresh")+len("complete")), e.gov.Counters().Bytes())
	assert.Equal(t, int64(2), e.gov.Counters().Count())
	assertConsistent(t, e, c)
}

func TestBootstrap_ExpiresAcrossRestart(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	short := complete("short", 10, []byte("short"))
	short.Complete.Context.TTL = time.Hour
	require.NoError(t, c.Write(short, false))
	require.NoError(t, c.Write(complete("long", 10, []byte("long")), false))
	require.NoError(t, c.Close())
	require.Equal(t, int64(0), e.gov.Counters().Bytes())

	e.clock.Advance(2 * time.Hour)
	c = e.open()

	assert.Nil(t, mustRead(t, c, "short", 0))
	assertGone(t, filepath.Join(e.dir, "short"))

	got := mustRead(t, c, "long", domain.FetchComplete)
	require.NotNil(t, got)
	assert.Equal(t, []byte("long"), got.Complete.Data)
	assert.Equal(t, int64(4), e.gov.Counters().Bytes())
}

func TestBootstrap_RecoversIdentifiers(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	raw := "https://img.test/photos/1.jpg?w=100"
	long := "https://img.test/" + strings.Repeat("very/long/path/", 20)
	require.NoError(t, c.Write(complete(raw, 10, []byte("raw")), false))

	entry := complete(long, 10, []byte("long"))
	entry.Complete.Context.URL = "https://cdn.test/long.jpg"
	require.NoError(t, c.Write(entry, false))
	require.NoError(t, c.Close())

	c = e.open()

	got := mustRead(t, c, raw, domain.FetchComplete)
	require.NotNil(t, got)
	assert.Equal(t, []byte("raw"), got.Complete.Data)

	// Hashed names fall back to the stored URL.
	snap, err := c.Inspect(context.Background(), domain.InspectOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{raw, "https://cdn.test/long.jpg"}, identifiers(snap.Complete))

	// Lookups by the raw identifier still work.
	assert.NotNil(t, mustRead(t, c, long, 0))
}

func TestBootstrap_Failure(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	require.NoError(t, os.WriteFile(e.dir, []byte("not a directory"), domain.FilePerm))

	ctrl := gomock.NewController(t)
	sink := mocks.NewMockDiagnosticSink(ctrl)
	reported := make(chan domain.DiagnosticEvent, 1)
	sink.EXPECT().Report(gomock.Any()).Do(func(ev domain.DiagnosticEvent) {
		reported <- ev
	})

	c := e.open(func(o *diskcache.Options) { o.Diagnostics = sink })

	select {
	case ev := <-reported:
		assert.Equal(t, domain.DiagnosticBootstrapFailed, ev.Kind)
		assert.Equal(t, "images", ev.Cache)
		assert.True(t, errors.Is(ev.Err, domain.ErrIOFailure))
	case <-time.After(5 * time.Second):
		t.Fatal("bootstrap failure was not reported")
	}

	got, err := c.Read("a", domain.FetchComplete)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = c.Write(complete("a", 10, []byte("x")), false)
	assert.True(t, errors.Is(err, domain.ErrCacheUnavailable))

	snap, err := c.Inspect(context.Background(), domain.InspectOptions{})
	require.NoError(t, err)
	assert.False(t, snap.Loaded)

	assert.Equal(t, int64(0), e.gov.Counters().Bytes())
}

// gatedStore holds back metadata reads of one file until released.
type gatedStore struct {
	ports.MetadataStore
	name    string
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Read(path string, kind domain.VariantKind) (domain.EntryContext, error) {
	if filepath.Base(path) == g.name {
		<-g.release
	}
	return g.MetadataStore.Read(path, kind)
}

func (g *gatedStore) open() {
	g.once.Do(func() { close(g.release) })
}

func TestBootstrap_InterimMutations(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	plant(t, e, "gated", "gated", accessedAt(domain.KindComplete, 10, "https://img.test/gated", epoch))
	plant(t, e, "doomed", "doomed!!", accessedAt(domain.KindComplete, 10, "https://img.test/doomed", epoch))
	plant(t, e, "kept", "kept", accessedAt(domain.KindComplete, 10, "https://img.test/kept", epoch))

	gate := &gatedStore{MetadataStore: e.meta, name: "gated", release: make(chan struct{})}

	opts := e.options()
	opts.Metadata = gate
	c, err := diskcache.New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	t.Cleanup(gate.open)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.WaitUntilLoaded(ctx), context.DeadlineExceeded)

	// Reads are served from disk while loading.
	got := mustRead(t, c, "kept", domain.FetchComplete)
	require.NotNil(t, got)
	assert.Equal(t, []byte("kept"), got.Complete.Data)

	require.NoError(t, c.Remove("doomed"))
	assert.GreaterOrEqual(t, e.gov.Counters().Bytes(), int64(0))
	assert.GreaterOrEqual(t, e.gov.Counters().Count(), int64(0))

	require.NoError(t, c.Write(complete("added", 10, []byte("added")), false))
	require.NoError(t, c.Write(complete("kept", 100, []byte("bigger")), false))
	assert.GreaterOrEqual(t, e.gov.Counters().Bytes(), int64(0))

	gate.open()
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer loadCancel()
	require.NoError(t, c.WaitUntilLoaded(loadCtx))

	snap, err := c.Inspect(context.Background(), domain.InspectOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gated", "kept", "added"}, identifiers(snap.Complete))
	assert.Equal(t, "bigger", completeData(t, c, "kept"))
	assertGone(t, filepath.Join(e.dir, "doomed"))

	assert.Equal(t, int64(len("gated")+len("bigger")+len("added")), e.gov.Counters().Bytes())
	assert.Equal(t, int64(3), e.gov.Counters().Count())
	assertConsistent(t, e, c)
}
