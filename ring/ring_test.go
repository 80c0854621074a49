package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreeSpaceAndCapacity(t *testing.T) {
	r := New(16)
	require.Equal(t, 16, r.FreeSpace())
	r.Append([]byte("hello"))
	require.Equal(t, 11, r.FreeSpace())
}

func TestAppendPeekConsumeRoundTrip(t *testing.T) {
	r := New(64)
	payload := []byte("a single frame payload")
	r.Append(payload)

	dst := make([]byte, len(payload))
	require.True(t, r.Peek(dst, len(payload)))
	require.Equal(t, payload, dst)

	// Peek must not advance the head.
	dst2 := make([]byte, len(payload))
	require.True(t, r.Peek(dst2, len(payload)))
	require.Equal(t, payload, dst2)

	require.True(t, r.Consume(len(payload)))
	require.Zero(t, r.Len())
}

func TestFIFOOrdering(t *testing.T) {
	r := New(64)
	r.Append([]byte("first"))
	r.Append([]byte("second"))

	dst := make([]byte, 5)
	r.Peek(dst, 5)
	require.Equal(t, "first", string(dst))
	r.Consume(5)

	dst2 := make([]byte, 6)
	r.Peek(dst2, 6)
	require.Equal(t, "second", string(dst2))
}

func TestConsumeFailsWhenShort(t *testing.T) {
	r := New(16)
	r.Append([]byte("ab"))
	require.False(t, r.Consume(3), "Consume(3) succeeded with only 2 bytes stored")
	require.Equal(t, 2, r.Len())
}

func TestClearResetsToFullCapacity(t *testing.T) {
	r := New(32)
	r.Append([]byte("some bytes in here"))
	r.Clear()
	require.Equal(t, 32, r.FreeSpace())
	require.Zero(t, r.Len())
}

func TestAppendExactCapacitySucceeds(t *testing.T) {
	r := New(5)
	require.Equal(t, 5, r.FreeSpace())
	r.Append([]byte("exact"))
	require.Zero(t, r.FreeSpace())
	dst := make([]byte, 5)
	require.True(t, r.Peek(dst, 5))
	require.Equal(t, "exact", string(dst))
}

func TestWrapAroundRoundTrip(t *testing.T) {
	r := New(8)
	r.Append([]byte("abcd"))
	r.Consume(4)
	// tail is now at offset 4; this append wraps around the end.
	r.Append([]byte("efghij"))
	require.Equal(t, 6, r.Len())
	dst := make([]byte, 6)
	require.True(t, r.Peek(dst, 6))
	require.Equal(t, "efghij", string(dst))
	r.Consume(6)
	require.Zero(t, r.Len())
}

func TestCurrentPosLinearizesWrappedRegion(t *testing.T) {
	r := New(8)
	r.Append([]byte("abcd"))
	r.Consume(4)
	r.Append([]byte("efghij")) // wraps: head=4, tail=(4+6)%8=2

	a, b := r.CurrentPos(6)
	scratch := make([]byte, 0, 6)
	scratch = append(scratch, a...)
	scratch = append(scratch, b...)
	require.Equal(t, "efghij", string(scratch))
	require.NotEmpty(t, b, "expected CurrentPos to report a wrapped second segment")
}

func TestMultisetIsPrefixOfAppends(t *testing.T) {
	r := New(128)
	records := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, rec := range records {
		r.Append(rec)
	}

	for _, want := range records {
		dst := make([]byte, len(want))
		require.True(t, r.Peek(dst, len(want)))
		require.Equal(t, want, dst)
		require.True(t, r.Consume(len(want)))
	}
	require.Zero(t, r.Len())
}
