package diskcache_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/engine/diskcache"
)

func openTemp(t *testing.T, c *diskcache.Cache, id, data string) *diskcache.TempFile {
	t.Helper()
	tf, err := c.OpenTempFile(id)
	require.NoError(t, err)
	_, err = tf.Write([]byte(data))
	require.NoError(t, err)
	return tf
}

func assertGone(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

func TestTempFile_Finalize(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	tf := openTemp(t, c, "a", "hello")
	assert.Equal(t, "a", tf.Identifier())
	require.NoError(t, tf.Finalize(ctxFor(domain.KindComplete, 100, "https://img.test/a")))
	assertGone(t, tf.Path())

	got := mustRead(t, c, "a", domain.FetchComplete)
	require.NotNil(t, got)
	assert.Equal(t, []byte("hello"), got.Complete.Data)
	assert.Equal(t, epoch, got.Complete.Context.LastAccess)

	assert.Equal(t, int64(5), e.gov.Counters().Bytes())
	assertConsistent(t, e, c)
}

func TestTempFile_FinalizeBlockedByPartial(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(partial("a", 300, []byte("partial")), false))
	bytesBefore := e.gov.Counters().Bytes()

	tf := openTemp(t, c, "a", "small")
	require.NoError(t, c.FinalizeTempFile(tf, ctxFor(domain.KindComplete, 100, "https://img.test/a")))
	assertGone(t, tf.Path())

	got := mustRead(t, c, "a", 0)
	require.NotNil(t, got)
	assert.Nil(t, got.Complete)
	assert.NotNil(t, got.Partial)
	assert.Equal(t, bytesBefore, e.gov.Counters().Bytes())
}

func TestTempFile_FinalizeCompleteReplacesPartial(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	require.NoError(t, c.Write(partial("a", 300, []byte("partial")), false))

	tf := openTemp(t, c, "a", "complete")
	require.NoError(t, tf.Finalize(ctxFor(domain.KindComplete, 400, "https://img.test/a")))

	got := mustRead(t, c, "a", domain.FetchComplete)
	require.NotNil(t, got.Complete)
	assert.Equal(t, []byte("complete"), got.Complete.Data)
	assert.Nil(t, got.Partial)
	assertGone(t, e.dir+"/a"+domain.PartialSuffix)
	assertConsistent(t, e, c)
}

func TestTempFile_FinalizeDiscards(t *testing.T) {
	t.Parallel()

	placeholder := ctxFor(domain.KindPartial, 100, "https://img.test/a")
	placeholder.TreatAsPlaceholder = true

	tests := []struct {
		name string
		data string
		ctx  domain.EntryContext
	}{
		{name: "placeholder partial", data: "abc", ctx: placeholder},
		{name: "empty file", data: "", ctx: ctxFor(domain.KindComplete, 100, "https://img.test/a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, domain.Budget{})
			c := e.open()

			tf := openTemp(t, c, "a", tt.data)
			require.NoError(t, tf.Finalize(tt.ctx))
			assertGone(t, tf.Path())
			assert.Nil(t, mustRead(t, c, "a", 0))
			assert.Equal(t, int64(0), e.gov.Counters().Count())
		})
	}
}

func TestTempFile_FinalizeMissingURL(t *testing.T) {
	t.Parallel()

	c := newEnv(t, domain.Budget{}).open()

	tf := openTemp(t, c, "a", "abc")
	err := tf.Finalize(ctxFor(domain.KindComplete, 10, ""))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assertGone(t, tf.Path())
	assert.Nil(t, mustRead(t, c, "a", 0))
}

func TestTempFile_FinalizeInvalidDimensions(t *testing.T) {
	t.Parallel()

	c := newEnv(t, domain.Budget{}).open()

	tf := openTemp(t, c, "a", "abc")
	err := tf.Finalize(ctxFor(domain.KindComplete, 0.5, "https://img.test/a"))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assertGone(t, tf.Path())
	assert.Nil(t, mustRead(t, c, "a", 0))
}

func TestTempFile_Closed(t *testing.T) {
	t.Parallel()

	c := newEnv(t, domain.Budget{}).open()

	tf := openTemp(t, c, "a", "abc")
	require.NoError(t, tf.Finalize(ctxFor(domain.KindComplete, 10, "https://img.test/a")))

	_, err := tf.Write([]byte("more"))
	assert.True(t, errors.Is(err, domain.ErrTempFileClosed))

	err = tf.Finalize(ctxFor(domain.KindComplete, 10, "https://img.test/a"))
	assert.True(t, errors.Is(err, domain.ErrTempFileClosed))
}

func TestTempFile_Discard(t *testing.T) {
	t.Parallel()

	c := newEnv(t, domain.Budget{}).open()

	tf := openTemp(t, c, "a", "abc")
	require.NoError(t, tf.Discard())
	assertGone(t, tf.Path())
	require.NoError(t, tf.Discard())
	assert.Nil(t, mustRead(t, c, "a", 0))
}

func TestTempFile_ResumeFromPartial(t *testing.T) {
	t.Parallel()

	e := newEnv(t, domain.Budget{})
	c := e.open()

	p := partial("a", 200, []byte("abc"))
	p.Partial.Context.LastModified = "Wed, 21 Oct 2015 07:28:00 GMT"
	p.Partial.Context.ExpectedContentLength = 6
	require.NoError(t, c.Write(p, false))

	got := mustRead(t, c, "a", domain.FetchTempFileIfNoComplete)
	require.NotNil(t, got)
	require.NotNil(t, got.TempFile)
	assert.Equal(t, "Wed, 21 Oct 2015 07:28:00 GMT", got.Partial.Context.LastModified)

	seeded, err := os.ReadFile(got.TempFile.Path())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(seeded))

	_, err = got.TempFile.Write([]byte("def"))
	require.NoError(t, err)

	// Same dimensions with more bytes is progress.
	require.NoError(t, got.TempFile.Finalize(got.Partial.Context))

	again := mustRead(t, c, "a", domain.FetchPartial)
	require.NotNil(t, again.Partial)
	assert.Equal(t, []byte("abcdef"), again.Partial.Data)
	assert.Equal(t, int64(6), e.gov.Counters().Bytes())
	assertConsistent(t, e, c)
}

func TestTempFile_NotOpenedWithComplete(t *testing.T) {
	t.Parallel()

	c := newEnv(t, domain.Budget{}).open()
	require.NoError(t, c.Write(complete("a", 10, []byte("abc")), false))

	got := mustRead(t, c, "a", domain.FetchTempFileIfNoComplete)
	require.NotNil(t, got)
	assert.Nil(t, got.TempFile)
}
