package payload

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multiFragment(t *testing.T, parts ...string) *Bytes {
	t.Helper()
	frags := make([][]byte, len(parts))
	for i, p := range parts {
		frags[i] = []byte(p)
	}
	return FromFragments(frags...)
}

func TestFromBytesCopies(t *testing.T) {
	src := []byte("hello")
	b := FromBytes(src)
	defer b.Release()

	// Caller may scribble over its slice immediately.
	src[0] = 'X'
	assert.Equal(t, []byte("hello"), b.Concat())
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, 1, b.NumFragments())
}

func TestWrapZeroCopy(t *testing.T) {
	deletes := 0
	data := []byte("payload")
	b := Wrap(data, func(got []byte) {
		deletes++
		assert.Equal(t, data, got)
	})

	assert.Equal(t, 0, deletes)
	b.Release()
	assert.Equal(t, 1, deletes)

	// Release is idempotent; the deleter never reruns.
	b.Release()
	assert.Equal(t, 1, deletes)
}

func TestWrapDeleterOnceAcrossClones(t *testing.T) {
	deletes := 0
	b := Wrap([]byte("shared"), func([]byte) { deletes++ })

	c1 := b.ShallowClone()
	c2 := c1.ShallowClone()

	b.Release()
	c1.Release()
	assert.Equal(t, 0, deletes, "deleter must wait for the last reference")
	assert.Equal(t, []byte("shared"), c2.Concat())

	c2.Release()
	assert.Equal(t, 1, deletes)
}

func TestWrapEmptyRunsDeleterImmediately(t *testing.T) {
	deletes := 0
	b := Wrap(nil, func([]byte) { deletes++ })
	assert.Equal(t, 1, deletes)
	assert.True(t, b.IsEmpty())
}

func TestFromFragmentsSkipsEmpty(t *testing.T) {
	b := FromFragments([]byte("ab"), nil, []byte(""), []byte("cd"))
	defer b.Release()
	assert.Equal(t, 2, b.NumFragments())
	assert.Equal(t, []byte("abcd"), b.Concat())
}

func TestTwoReadPathsAgree(t *testing.T) {
	b := multiFragment(t, "seg", "mented", "", "bytes")
	defer b.Release()

	var viaIter []byte
	it := b.Slices()
	for {
		frag, ok := it.Next()
		if !ok {
			break
		}
		viaIter = append(viaIter, frag...)
	}

	viaReader, err := io.ReadAll(b.Reader())
	require.NoError(t, err)

	assert.Equal(t, viaIter, viaReader)
	assert.Equal(t, b.Concat(), viaReader)
}

func TestShallowCloneSharedOwnership(t *testing.T) {
	b := multiFragment(t, "alpha", "beta")
	c := b.ShallowClone()

	c.Release()

	// The original stays readable and unchanged after the clone dies.
	assert.Equal(t, []byte("alphabeta"), b.Concat())
	b.Release()
}

func TestReaderShortReadAtEnd(t *testing.T) {
	b := multiFragment(t, "abc", "de")
	defer b.Release()

	r := b.Reader()
	buf := make([]byte, 4)

	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("abcd"), buf)

	// Short read at end of data is not an error by itself.
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte('e'), buf[0])

	_, err = r.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderReadExact(t *testing.T) {
	b := FromBytes([]byte("1234"))
	defer b.Release()

	r := b.Reader()
	buf := make([]byte, 3)
	require.NoError(t, r.ReadExact(buf))
	assert.Equal(t, []byte("123"), buf)
	assert.Equal(t, 1, r.Remaining())

	// Requiring more than remains is an insufficient-data failure.
	err := r.ReadExact(make([]byte, 2))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestReaderByteAcrossFragments(t *testing.T) {
	b := multiFragment(t, "x", "y")
	defer b.Release()

	r := b.Reader()
	var got []byte
	for {
		c, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, c)
	}
	assert.Equal(t, []byte("xy"), got)
}

func TestSliceIteratorNotRestartable(t *testing.T) {
	b := multiFragment(t, "a", "b")
	defer b.Release()

	it := b.Slices()
	for {
		if _, ok := it.Next(); !ok {
			break
		}
	}
	// Exhausted iterators stay exhausted; a fresh one rescans.
	_, ok := it.Next()
	assert.False(t, ok)

	frag, ok := b.Slices().Next()
	require.True(t, ok)
	assert.True(t, bytes.Equal([]byte("a"), frag))
}

func TestEmptyContainer(t *testing.T) {
	b := Empty()
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0, b.NumFragments())

	_, err := b.Reader().Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	_, ok := b.Slices().Next()
	assert.False(t, ok)

	c := b.ShallowClone()
	assert.True(t, c.IsEmpty())
}
