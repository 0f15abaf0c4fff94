package diskcache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/core/ports/mocks"
	"go.trai.ch/mediacache/internal/engine/diskcache"
	"go.uber.org/mock/gomock"
)

func completeData(t *testing.T, c *diskcache.Cache, id string) string {
	t.Helper()
	got := mustRead(t, c, id, domain.FetchComplete)
	require.NotNil(t, got)
	require.NotNil(t, got.Complete)
	return string(got.Complete.Data)
}

func TestCache_WriteReplacement(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(complete("a", 100, []byte("first")), false))

	// Larger area replaces.
	require.NoError(t, c.Write(complete("a", 200, []byte("second!")), false))
	assert.Equal(t, "second!", completeData(t, c, "a"))

	// Smaller area does not.
	require.NoError(t, c.Write(complete("a", 50, []byte("x")), false))
	assert.Equal(t, "second!", completeData(t, c, "a"))

	// Same image at the same size is kept.
	require.NoError(t, c.Write(complete("a", 200, []byte("again")), false))
	assert.Equal(t, "second!", completeData(t, c, "a"))

	// Same size from another URL replaces.
	other := complete("a", 200, []byte("mirror"))
	other.Complete.Context.URL = "https://mirror.test/a"
	require.NoError(t, c.Write(other, false))
	assert.Equal(t, "mirror", completeData(t, c, "a"))

	// Forced always replaces.
	require.NoError(t, c.Write(complete("a", 10, []byte("tiny")), true))
	assert.Equal(t, "tiny", completeData(t, c, "a"))

	assert.Equal(t, int64(len("tiny")), e.gov.Counters().Bytes())
	assert.Equal(t, int64(1), e.gov.Counters().Count())
	assertConsistent(t, e, c)
}

func TestCache_WritePlaceholder(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	placeholder := complete("a", 500, []byte("blurry"))
	placeholder.Complete.Context.TreatAsPlaceholder = true
	require.NoError(t, c.Write(placeholder, false))

	// Real data replaces a placeholder regardless of size.
	require.NoError(t, c.Write(complete("a", 10, []byte("real")), false))
	assert.Equal(t, "real", completeData(t, c, "a"))

	// A placeholder never replaces real data.
	bigger := complete("a", 1000, []byte("bigger placeholder"))
	bigger.Complete.Context.TreatAsPlaceholder = true
	require.NoError(t, c.Write(bigger, false))
	assert.Equal(t, "real", completeData(t, c, "a"))

	assertConsistent(t, e, c)
}

func TestCache_WritePartialFidelity(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(partial("a", 300, []byte("partial")), false))
	require.NoError(t, c.Write(complete("a", 100, []byte("small")), false))

	// The partial exceeds the complete's area and is kept.
	got := mustRead(t, c, "a", domain.FetchComplete|domain.FetchPartial)
	require.NotNil(t, got.Complete)
	require.NotNil(t, got.Partial)
	assert.Equal(t, []byte("small"), got.Complete.Data)
	assert.Equal(t, []byte("partial"), got.Partial.Data)
	assertConsistent(t, e, c)

	// A complete of equal area makes the partial redundant.
	require.NoError(t, c.Write(complete("a", 300, []byte("full")), false))
	got = mustRead(t, c, "a", 0)
	require.NotNil(t, got.Complete)
	assert.Nil(t, got.Partial)
	_, err := os.Stat(filepath.Join(e.dir, "a"+domain.PartialSuffix))
	assert.True(t, os.IsNotExist(err))

	// A partial that does not exceed the complete is never stored.
	require.NoError(t, c.Write(partial("a", 200, []byte("late")), false))
	assert.Nil(t, mustRead(t, c, "a", 0).Partial)

	assert.Equal(t, int64(len("full")), e.gov.Counters().Bytes())
	assertConsistent(t, e, c)
}

func TestCache_WriteCompleteSupersedesCandidatePartial(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	entry := complete("a", 100, []byte("complete"))
	entry.Partial = &domain.Variant{Context: ctxFor(domain.KindPartial, 400, "https://img.test/a"), Data: []byte("partial")}
	require.NoError(t, c.Write(entry, false))

	got := mustRead(t, c, "a", 0)
	require.NotNil(t, got.Complete)
	assert.Nil(t, got.Partial)
	assertConsistent(t, e, c)
}

func TestCache_WriteRealOverPlaceholderDropsPartial(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	placeholder := complete("a", 100, []byte("blurry"))
	placeholder.Complete.Context.TreatAsPlaceholder = true
	require.NoError(t, c.Write(placeholder, false))
	require.NoError(t, c.Write(partial("a", 400, []byte("partial")), false))
	require.NotNil(t, mustRead(t, c, "a", 0).Partial)

	require.NoError(t, c.Write(complete("a", 50, []byte("real")), false))

	got := mustRead(t, c, "a", 0)
	require.NotNil(t, got.Complete)
	assert.False(t, got.Complete.Context.TreatAsPlaceholder)
	assert.Nil(t, got.Partial)
	assertConsistent(t, e, c)
}

func TestCache_SizeCap(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockDiagnosticSink(ctrl)

	var events []domain.DiagnosticEvent
	sink.EXPECT().Report(gomock.Any()).Do(func(ev domain.DiagnosticEvent) {
		events = append(events, ev)
	}).Times(2)

	c := e.open(func(o *diskcache.Options) {
		o.MaxEntryBytes = 8
		o.Diagnostics = sink
	})

	require.NoError(t, c.Write(complete("a", 10, []byte("0123456789")), false))
	assert.Nil(t, mustRead(t, c, "a", 0))

	require.NoError(t, c.Write(partial("b", 10, []byte("0123456789abc")), false))
	assert.Nil(t, mustRead(t, c, "b", 0))

	require.NoError(t, c.Write(complete("c", 10, []byte("01234567")), false))
	assert.NotNil(t, mustRead(t, c, "c", 0))

	require.Len(t, events, 2)
	assert.Equal(t, domain.DiagnosticOversizeEvicted, events[0].Kind)
	assert.Equal(t, "images", events[0].Cache)
	assert.Equal(t, "a", events[0].Identifier)
	assert.Equal(t, domain.KindComplete, events[0].Variant)
	assert.Equal(t, int64(10), events[0].Bytes)
	assert.Equal(t, int64(8), events[0].Limit)
	assert.True(t, errors.Is(events[0].Err, domain.ErrCapacityExceeded))
	assert.Equal(t, domain.KindPartial, events[1].Variant)

	_, err := os.Stat(filepath.Join(e.dir, "a"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, int64(8), e.gov.Counters().Bytes())
	assert.Equal(t, int64(1), e.gov.Counters().Count())
}

func TestCache_ReadExpiry(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(complete("a", 10, []byte("abc")), false))

	// Reading refreshes the access time.
	e.clock.Advance(12 * time.Hour)
	got := mustRead(t, c, "a", 0)
	require.NotNil(t, got)
	assert.Equal(t, epoch.Add(12*time.Hour), got.Complete.Context.LastAccess)

	e.clock.Advance(13 * time.Hour)
	require.NotNil(t, mustRead(t, c, "a", 0))

	e.clock.Advance(25 * time.Hour)
	assert.Nil(t, mustRead(t, c, "a", 0))

	_, err := os.Stat(filepath.Join(e.dir, "a"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, int64(0), e.gov.Counters().Bytes())
	assert.Equal(t, int64(0), e.gov.Counters().Count())
}

func TestCache_Touch(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	entry := complete("a", 10, []byte("abc"))
	entry.Complete.Context.UpdateExpiryOnAccess = false
	require.NoError(t, c.Write(entry, false))

	e.clock.Advance(time.Hour)

	found, err := c.Touch("a", false)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, epoch, mustRead(t, c, "a", 0).Complete.Context.LastAccess)

	found, err = c.Touch("a", true)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, epoch.Add(time.Hour), mustRead(t, c, "a", 0).Complete.Context.LastAccess)

	found, err = c.Touch("missing", true)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_TouchOrWrite(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(complete("a", 100, []byte("stored")), false))

	// A stored entry is only touched.
	require.NoError(t, c.TouchOrWrite(complete("a", 400, []byte("bigger")), false))
	assert.Equal(t, "stored", completeData(t, c, "a"))

	// A missing one is written.
	require.NoError(t, c.TouchOrWrite(complete("b", 10, []byte("new")), false))
	assert.Equal(t, "new", completeData(t, c, "b"))

	assertConsistent(t, e, c)
}

func TestCache_Rename(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	entry := complete("a", 100, []byte("aaa"))
	require.NoError(t, c.Write(entry, false))
	require.NoError(t, c.Write(partial("a", 300, []byte("ppppp")), false))
	require.NoError(t, c.Write(complete("b", 100, []byte("bb")), false))

	bytesBefore := e.gov.Counters().Bytes()

	require.NoError(t, c.Rename("a", "b"))

	assert.Nil(t, mustRead(t, c, "a", 0))
	got := mustRead(t, c, "b", domain.FetchComplete|domain.FetchPartial)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.Identifier)
	assert.Equal(t, []byte("aaa"), got.Complete.Data)
	assert.Equal(t, []byte("ppppp"), got.Partial.Data)

	for _, name := range []string{"a", "a" + domain.PartialSuffix} {
		_, err := os.Stat(filepath.Join(e.dir, name))
		assert.True(t, os.IsNotExist(err), name)
	}

	// The replaced destination is the only change in usage.
	assert.Equal(t, bytesBefore-2, e.gov.Counters().Bytes())
	assert.Equal(t, int64(1), e.gov.Counters().Count())
	assertConsistent(t, e, c)
}

func TestCache_RenameDropsUnmovablePartial(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(complete("a", 100, []byte("aaa")), false))
	require.NoError(t, c.Write(partial("a", 300, []byte("ppppp")), false))
	require.NoError(t, os.Remove(filepath.Join(e.dir, "a"+domain.PartialSuffix)))

	require.NoError(t, c.Rename("a", "b"))

	assert.Nil(t, mustRead(t, c, "a", 0))
	got := mustRead(t, c, "b", domain.FetchComplete)
	require.NotNil(t, got)
	assert.Equal(t, []byte("aaa"), got.Complete.Data)
	assert.Nil(t, got.Partial)

	_, err := os.Stat(filepath.Join(e.dir, "b"+domain.PartialSuffix))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, int64(3), e.gov.Counters().Bytes())
	assert.Equal(t, int64(1), e.gov.Counters().Count())
	assertConsistent(t, e, c)
}

func TestCache_RenameFailureKeepsDestination(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(complete("a", 100, []byte("aaa")), false))
	require.NoError(t, c.Write(complete("b", 100, []byte("bb")), false))
	require.NoError(t, c.Write(partial("b", 300, []byte("pp")), false))
	require.NoError(t, os.Remove(filepath.Join(e.dir, "a")))

	bytesBefore := e.gov.Counters().Bytes()
	countBefore := e.gov.Counters().Count()

	err := c.Rename("a", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIOFailure), "got %v", err)

	got := mustRead(t, c, "b", domain.FetchComplete|domain.FetchPartial)
	require.NotNil(t, got)
	assert.Equal(t, []byte("bb"), got.Complete.Data)
	assert.Equal(t, []byte("pp"), got.Partial.Data)
	assert.Equal(t, bytesBefore, e.gov.Counters().Bytes())
	assert.Equal(t, countBefore, e.gov.Counters().Count())

	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	for _, de := range entries {
		assert.NotContains(t, de.Name(), ".staging-")
	}
}

func TestCache_RenameOverDestinationPartial(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(complete("a", 100, []byte("aaa")), false))
	require.NoError(t, c.Write(complete("b", 100, []byte("bb")), false))
	require.NoError(t, c.Write(partial("b", 300, []byte("pppp")), false))

	require.NoError(t, c.Rename("a", "b"))

	got := mustRead(t, c, "b", domain.FetchComplete|domain.FetchPartial)
	require.NotNil(t, got)
	assert.Equal(t, []byte("aaa"), got.Complete.Data)
	assert.Nil(t, got.Partial)

	_, err := os.Stat(filepath.Join(e.dir, "b"+domain.PartialSuffix))
	assert.True(t, os.IsNotExist(err))
	assertConsistent(t, e, c)
}

func TestCache_RenameErrors(t *testing.T) {
	t.Parallel()

	c := newEnv(t, domain.Budget{}).open()
	require.NoError(t, c.Write(complete("a", 10, []byte("x")), false))

	err := c.Rename("missing", "b")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	err = c.Rename("", "b")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	require.NoError(t, c.Rename("a", "a"))
	assert.NotNil(t, mustRead(t, c, "a", 0))
}

func TestCache_Remove(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(complete("a", 10, []byte("abc")), false))
	require.NoError(t, c.Write(partial("a", 30, []byte("de")), false))

	require.NoError(t, c.Remove("a"))
	assert.Nil(t, mustRead(t, c, "a", 0))

	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = c.Remove("a")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.Equal(t, int64(0), e.gov.Counters().Bytes())
	assert.Equal(t, int64(0), e.gov.Counters().Count())
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Write(complete(id, 10, []byte(id+id)), false))
	}
	require.NoError(t, c.Write(partial("c", 40, []byte("cccc")), false))

	require.NoError(t, c.Clear(context.Background()))

	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	snap, err := c.Inspect(context.Background(), domain.InspectOptions{})
	require.NoError(t, err)
	assert.Empty(t, snap.Complete)
	assert.Empty(t, snap.Partial)
	assert.Equal(t, int64(0), e.gov.Counters().Bytes())
	assert.Equal(t, int64(0), e.gov.Counters().Count())
}

func TestCache_CopyToTemp(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(complete("a", 10, []byte("payload")), false))

	path, err := c.CopyToTemp("a")
	require.NoError(t, err)
	assert.Equal(t, e.tmp, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// The copy is independent of the cache.
	require.NoError(t, os.Remove(path))
	assert.Equal(t, "payload", completeData(t, c, "a"))

	require.NoError(t, c.Write(partial("p", 10, []byte("part")), false))
	_, err = c.CopyToTemp("p")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = c.CopyToTemp("missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCache_InspectChecksums(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(complete("a", 10, []byte("first")), false))
	e.clock.Advance(time.Minute)
	require.NoError(t, c.Write(complete("b", 10, []byte("second")), false))
	require.NoError(t, c.Write(partial("b", 20, []byte("partial")), false))

	snap, err := c.Inspect(context.Background(), domain.InspectOptions{Checksums: true})
	require.NoError(t, err)
	assert.True(t, snap.Loaded)
	assert.Equal(t, "images", snap.Cache)

	require.Len(t, snap.Complete, 2)
	assert.Equal(t, "b", snap.Complete[0].Identifier)
	assert.Equal(t, "a", snap.Complete[1].Identifier)
	assert.Equal(t, strconv.FormatUint(xxhash.Sum64String("first"), 16), snap.Complete[1].Checksum)

	require.Len(t, snap.Partial, 1)
	assert.Equal(t, filepath.Join(e.dir, "b"+domain.PartialSuffix), snap.Partial[0].Path)
	assert.Equal(t, strconv.FormatUint(xxhash.Sum64String("partial"), 16), snap.Partial[0].Checksum)
	assert.Equal(t, int64(len("first")+len("second")+len("partial")), snap.TotalBytes)
}

func TestCache_GovernorPrunes(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{MaxCount: 2})
	c := e.open()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Write(complete(id, 10, []byte(id)), false))
	}
	e.gov.PruneNow(c)

	assert.Eventually(t, func() bool {
		return e.gov.Counters().Count() == 2
	}, 5*time.Second, 10*time.Millisecond)

	assert.Nil(t, mustRead(t, c, "a", 0))
	assert.NotNil(t, mustRead(t, c, "b", 0))
	assert.NotNil(t, mustRead(t, c, "c", 0))
	assertConsistent(t, e, c)
}
