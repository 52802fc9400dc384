package dartidx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpcpool/dartidx/trie"
	"github.com/rpcpool/dartidx/valuecodec"
)

func buildPrefixFixture(t *testing.T) *Index[[]byte] {
	t.Helper()
	tr := trie.New[[]byte]()
	pairs := map[string]string{
		"he":    "A",
		"hell":  "B",
		"hello": "C",
		"help":  "D",
	}
	for k, v := range pairs {
		require.NoError(t, tr.Set([]byte(k), []byte(v)))
	}
	idx, err := Build[[]byte](tr, valuecodec.BytesVarint{})
	require.NoError(t, err)
	return idx
}

func TestPrefixSearchOrderedShortestToLongest(t *testing.T) {
	idx := buildPrefixFixture(t)
	t.Cleanup(func() { idx.Close() })

	matches, err := idx.PrefixSearch([]byte("hello"))
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.Equal(t, "he", string(matches[0].Prefix))
	require.Equal(t, [][]byte{[]byte("A")}, matches[0].Values)
	require.Equal(t, "hell", string(matches[1].Prefix))
	require.Equal(t, [][]byte{[]byte("B")}, matches[1].Values)
	require.Equal(t, "hello", string(matches[2].Prefix))
	require.Equal(t, [][]byte{[]byte("C")}, matches[2].Values)
}

func TestPrefixSearchNoMatchesOnUnrelatedQuery(t *testing.T) {
	idx := buildPrefixFixture(t)
	t.Cleanup(func() { idx.Close() })

	matches, err := idx.PrefixSearch([]byte("xyz"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestPrefixSearchStopsAtFirstFailingTransition(t *testing.T) {
	idx := buildPrefixFixture(t)
	t.Cleanup(func() { idx.Close() })

	matches, err := idx.PrefixSearch([]byte("helpful"))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "he", string(matches[0].Prefix))
	require.Equal(t, "help", string(matches[1].Prefix))
}

func TestPrefixSearchIterEquivalentToPrefixSearch(t *testing.T) {
	idx := buildPrefixFixture(t)
	t.Cleanup(func() { idx.Close() })

	want, err := idx.PrefixSearch([]byte("hello"))
	require.NoError(t, err)

	it := idx.PrefixSearchIter([]byte("hello"))
	var got []PrefixMatch[[]byte]
	for {
		m, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, m)
	}
	require.Equal(t, want, got)
}

func TestPrefixSearchIterExhaustsOnceAfterFailure(t *testing.T) {
	idx := buildPrefixFixture(t)
	t.Cleanup(func() { idx.Close() })

	it := idx.PrefixSearchIter([]byte("xyz"))
	_, ok, err := it.Next()
	require.NoError(t, err)
	require.False(t, ok)
	// Calling Next again after exhaustion stays false, never panics or
	// restarts the scan.
	_, ok, err = it.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetOnEmptyIndex(t *testing.T) {
	tr := trie.New[[]byte]()
	idx, err := Build[[]byte](tr, valuecodec.BytesVarint{})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	_, ok, err := idx.Get([]byte("anything"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStatsReflectsArrayAndDataSize(t *testing.T) {
	idx := buildPrefixFixture(t)
	t.Cleanup(func() { idx.Close() })

	stats, err := idx.Stats()
	require.NoError(t, err)
	require.Equal(t, idx.Len(), stats.ArrayLen)
	require.Greater(t, stats.DataLen, 0)
	require.Greater(t, stats.OccupiedSlot, 0)
}
