package valuecodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesVarintRoundTrip(t *testing.T) {
	c := BytesVarint{}
	values := [][]byte{[]byte("a"), []byte("bb"), {}, []byte("ddddd")}
	enc, err := c.Encode(values)
	require.NoError(t, err)
	dec, err := c.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, values, dec)
}

func TestBytesVarintEmpty(t *testing.T) {
	c := BytesVarint{}
	enc, err := c.Encode(nil)
	require.NoError(t, err)
	dec, err := c.Decode(enc)
	require.NoError(t, err)
	require.Empty(t, dec)
}

func TestBytesVarintDeterministic(t *testing.T) {
	c := BytesVarint{}
	values := [][]byte{[]byte("x"), []byte("y")}
	a, err := c.Encode(values)
	require.NoError(t, err)
	b, err := c.Encode(values)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestBytesVarintDecodeFailureTruncated(t *testing.T) {
	c := BytesVarint{}
	enc, err := c.Encode([][]byte{[]byte("hello")})
	require.NoError(t, err)
	_, err = c.Decode(enc[:len(enc)-2])
	require.Error(t, err)
}

func TestUint64VarintRoundTrip(t *testing.T) {
	c := Uint64Varint{}
	values := []uint64{0, 1, 1 << 40, 12345}
	enc, err := c.Encode(values)
	require.NoError(t, err)
	dec, err := c.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, values, dec)
}
