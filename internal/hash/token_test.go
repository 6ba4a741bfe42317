package hash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderToken_Stable(t *testing.T) {
	require.Equal(t, ReaderToken(7, "orders-3", 1), ReaderToken(7, "orders-3", 1))
	require.Equal(t, ReaderToken(0, "orders-3", 1), ReaderToken(0, "orders-3", 1))
}

func TestReaderToken_DiffersByInput(t *testing.T) {
	base := ReaderToken(7, "orders-3", 1)

	require.NotEqual(t, base, ReaderToken(8, "orders-3", 1), "seed")
	require.NotEqual(t, base, ReaderToken(7, "orders-4", 1), "partition")
	require.NotEqual(t, base, ReaderToken(7, "orders-3", 2), "generation")
}

func TestReaderToken_NoCollisionsAcrossPartitions(t *testing.T) {
	seen := make(map[uint64]string, 4096)
	for gen := range uint64(4) {
		for p := range 1024 {
			id := fmt.Sprintf("%d", p)
			tok := ReaderToken(99, id, gen)
			prev, dup := seen[tok]
			require.False(t, dup, "token collision between %s and %s/%d", prev, id, gen)
			seen[tok] = fmt.Sprintf("%s/%d", id, gen)
		}
	}
}
