package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMiss(t *testing.T) {
	s := New(0)
	_, err := s.Get("absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutThenGetRoundTrip(t *testing.T) {
	s := New(0)
	require.NoError(t, s.Put("foo", 0xDEADBEEF, []byte("bar")))

	entry, err := s.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), entry.Flags)
	assert.Equal(t, []byte("bar"), entry.Value)
}

func TestReplacementReleasesBytes(t *testing.T) {
	s := New(10)
	require.NoError(t, s.Put("a", 0, []byte("xxxxx"))) // 5 bytes
	require.NoError(t, s.Put("a", 0, []byte("yy")))     // 2 bytes

	assert.EqualValues(t, 2, s.Bytes())

	entry, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("yy"), entry.Value)
}

func TestEvictionIsFIFOByInsertion(t *testing.T) {
	s := New(6)
	require.NoError(t, s.Put("a", 0, []byte("111")))
	require.NoError(t, s.Put("b", 0, []byte("222")))
	require.NoError(t, s.Put("c", 0, []byte("33"))) // evicts "a"

	_, err := s.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)

	b, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, []byte("222"), b.Value)

	c, err := s.Get("c")
	require.NoError(t, err)
	assert.Equal(t, []byte("33"), c.Value)

	assert.EqualValues(t, 5, s.Bytes())
}

func TestSingleValueExceedsLimit(t *testing.T) {
	s := New(4)
	err := s.Put("k", 0, []byte("hello")) // 5 bytes > 4 byte limit
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, 0, s.Len())
	assert.EqualValues(t, 0, s.Bytes())
}

func TestGetNeverMutatesOrderingOrBytes(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Put("a", 0, []byte("1")))
	require.NoError(t, s.Put("b", 0, []byte("2")))

	before := s.Bytes()
	for i := 0; i < 5; i++ {
		_, _ = s.Get("a")
	}
	assert.Equal(t, before, s.Bytes())

	// "a" must still be the oldest: one more byte over the 2-byte limit
	// evicts "a" first, because GET never promoted it.
	require.NoError(t, s.Put("c", 0, []byte("3")))
	_, err := s.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("b")
	assert.NoError(t, err)
}

func TestPutZeroLimitIsUnlimited(t *testing.T) {
	s := New(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Put(string(rune('a'+i%26))+string(rune(i)), 0, make([]byte, 1000)))
	}
	assert.Equal(t, 100, s.Len())
}

func TestConcurrentAccessNeverPanics(t *testing.T) {
	s := New(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			_ = s.Put(key, 0, []byte{byte(i)})
			_, _ = s.Get(key)
		}(i)
	}
	wg.Wait()
}

func TestBytesInvariantHoldsAfterMixedOps(t *testing.T) {
	s := New(0)
	values := map[string][]byte{
		"a": []byte("one"),
		"b": []byte("twotwo"),
		"c": []byte("three"),
	}
	for k, v := range values {
		require.NoError(t, s.Put(k, 0, v))
	}
	require.NoError(t, s.Put("a", 0, []byte("1"))) // replace, shrink

	want := int64(len("1") + len("twotwo") + len("three"))
	assert.Equal(t, want, s.Bytes())
}

func TestErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrNotFound, ErrOutOfMemory))
}
