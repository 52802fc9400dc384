package dartidx

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpcpool/dartidx/trie"
	"github.com/rpcpool/dartidx/valuecodec"
)

func buildFromPairs(t *testing.T, pairs map[string][]byte) *Index[[]byte] {
	t.Helper()
	tr := trie.New[[]byte]()
	for k, v := range pairs {
		require.NoError(t, tr.Set([]byte(k), v))
	}
	idx, err := Build[[]byte](tr, valuecodec.BytesVarint{})
	require.NoError(t, err)
	return idx
}

func TestBuildSingleByteKey(t *testing.T) {
	idx := buildFromPairs(t, map[string][]byte{"a": []byte("1")})
	t.Cleanup(func() { idx.Close() })

	values, ok, err := idx.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [][]byte{[]byte("1")}, values)

	_, ok, err = idx.Get([]byte("b"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBuildOverlappingPrefixes(t *testing.T) {
	idx := buildFromPairs(t, map[string][]byte{
		"he":     []byte("A"),
		"hell":   []byte("B"),
		"hello":  []byte("C"),
		"help":   []byte("D"),
		"helper": []byte("E"),
	})
	t.Cleanup(func() { idx.Close() })

	for key, want := range map[string]string{
		"he":     "A",
		"hell":   "B",
		"hello":  "C",
		"help":   "D",
		"helper": "E",
	} {
		values, ok, err := idx.Get([]byte(key))
		require.NoError(t, err)
		require.True(t, ok, "key %q", key)
		require.Equal(t, [][]byte{[]byte(want)}, values)
	}

	for _, missing := range []string{"h", "hel", "hellop", "x"} {
		_, ok, err := idx.Get([]byte(missing))
		require.NoError(t, err)
		require.False(t, ok, "key %q should not match", missing)
	}
}

func TestBuildEmptyKeyAssociation(t *testing.T) {
	idx := buildFromPairs(t, map[string][]byte{
		"":  []byte("root"),
		"a": []byte("child"),
	})
	t.Cleanup(func() { idx.Close() })

	values, ok, err := idx.Get(nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [][]byte{[]byte("root")}, values)
}

func TestBuildMultiValueKey(t *testing.T) {
	tr := trie.New[[]byte]()
	require.NoError(t, tr.Set([]byte("k"), []byte("v1")))
	require.NoError(t, tr.Set([]byte("k"), []byte("v2")))
	require.NoError(t, tr.Set([]byte("k"), []byte("v3")))
	idx, err := Build[[]byte](tr, valuecodec.BytesVarint{})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	values, ok, err := idx.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [][]byte{[]byte("v1"), []byte("v2"), []byte("v3")}, values)
}

func TestBuildRejectsValueOverflow(t *testing.T) {
	tr := trie.New[[]byte]()
	for i := 0; i < 256; i++ {
		require.NoError(t, tr.Set([]byte("k"), []byte(fmt.Sprintf("%d", i))))
	}
	err := tr.Set([]byte("k"), []byte("overflow"))
	require.ErrorIs(t, err, trie.ErrValueOverflow)
}

func TestBuildRejectsReservedKeyByte(t *testing.T) {
	tr := trie.New[[]byte]()
	err := tr.Set([]byte{'a', 0xFF, 'b'}, []byte("x"))
	require.ErrorIs(t, err, trie.ErrReservedKeyByte)
}

func TestBuildDeterministic(t *testing.T) {
	pairs := map[string][]byte{
		"apple":       []byte("1"),
		"app":         []byte("2"),
		"application": []byte("3"),
		"banana":      []byte("4"),
		"band":        []byte("5"),
	}
	tr1 := trie.New[[]byte]()
	tr2 := trie.New[[]byte]()
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		require.NoError(t, tr1.Set([]byte(k), pairs[k]))
		require.NoError(t, tr2.Set([]byte(k), pairs[k]))
	}

	idx1, err := Build[[]byte](tr1, valuecodec.BytesVarint{})
	require.NoError(t, err)
	t.Cleanup(func() { idx1.Close() })
	idx2, err := Build[[]byte](tr2, valuecodec.BytesVarint{})
	require.NoError(t, err)
	t.Cleanup(func() { idx2.Close() })

	require.Equal(t, idx1.src.(*byteSource).b, idx2.src.(*byteSource).b)
}

func TestBuildAndPersistRoundTripRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pairs := map[string][]byte{}
	for i := 0; i < 500; i++ {
		klen := 1 + rng.Intn(12)
		key := make([]byte, klen)
		for j := range key {
			key[j] = byte(rng.Intn(255)) // never 0xFF
		}
		pairs[string(key)] = []byte(fmt.Sprintf("val-%d", i))
	}

	idx := buildFromPairs(t, pairs)
	t.Cleanup(func() { idx.Close() })

	for k, want := range pairs {
		values, ok, err := idx.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		require.Equal(t, [][]byte{want}, values)
	}

	blob := idx.src.(*byteSource).b
	reloaded, err := FromBytes[[]byte](blob, valuecodec.BytesVarint{})
	require.NoError(t, err)
	t.Cleanup(func() { reloaded.Close() })

	for k, want := range pairs {
		values, ok, err := reloaded.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		require.Equal(t, [][]byte{want}, values)
	}
}
