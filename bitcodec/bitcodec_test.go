package bitcodec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"aisnet/bitcodec"
)

func TestIntToBitsWidth(t *testing.T) {
	bits, err := bitcodec.IntToBits(5, 8)
	require.NoError(t, err)
	assert.Equal(t, "00000101", bits)
}

func TestIntToBitsOverflow(t *testing.T) {
	_, err := bitcodec.IntToBits(256, 8)
	assert.Error(t, err)
}

func TestBitsToIntRoundTrip(t *testing.T) {
	n, err := bitcodec.BitsToInt("00000101")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestStrToBitsAndBack(t *testing.T) {
	bits, err := bitcodec.StrToBits("abc", 0)
	require.NoError(t, err)
	decoded, err := bitcodec.BitsToStr(bits)
	require.NoError(t, err)
	assert.Equal(t, "abc", decoded)
}

func TestStrToBitsPadded(t *testing.T) {
	bits, err := bitcodec.StrToBits("a", 12)
	require.NoError(t, err)
	assert.Len(t, bits, 12)
	decoded, err := bitcodec.BitsToStr(bits)
	require.NoError(t, err)
	assert.Equal(t, "a", decoded)
}

func TestEncodeDecodeTransport(t *testing.T) {
	raw := bitcodec.Encode("0101")
	assert.Equal(t, "0101", bitcodec.Decode(raw))
}

// TestIntToBitsRoundTripProperty exercises the universal round-trip property
// from the testable-properties list: bits_to_int(int_to_bits(n)) == n for any
// n representable in the chosen width.
func TestIntToBitsRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		width := rapid.IntRange(1, 32).Draw(rt, "width")
		n := rapid.Uint64Range(0, uint64(1)<<uint(width)-1).Draw(rt, "n")

		bits, err := bitcodec.IntToBits(n, width)
		require.NoError(rt, err)
		require.Len(rt, bits, width)

		got, err := bitcodec.BitsToInt(bits)
		require.NoError(rt, err)
		require.Equal(rt, n, got)
	})
}
