package source

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/arloliu/fanin/types"
)

// Static implements partition discovery with a fixed list of partition ids.
type Static struct {
	mu  sync.RWMutex
	ids []string
}

var _ types.PartitionDiscovery = (*Static)(nil)

// NewStatic creates a static discovery returning ids in the given order.
//
// Useful for testing and for streams whose partition layout is known at startup.
//
// Example:
//
//	discovery := source.NewStatic("0", "1", "2", "3")
//	consumer, err := fanin.NewConsumer(&cfg, factory, discovery)
func NewStatic(ids ...string) *Static {
	return &Static{ids: slices.Clone(ids)}
}

// NewRange creates a static discovery with the decimal ids 0..n-1, the layout
// of a Kafka topic with n partitions.
func NewRange(n int) *Static {
	ids := make([]string, 0, max(n, 0))
	for i := range n {
		ids = append(ids, strconv.Itoa(i))
	}

	return &Static{ids: ids}
}

// ListPartitionIDs returns a copy of the configured ids.
func (s *Static) ListPartitionIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.ids), nil
}

// Update replaces the partition list.
//
// Streams already reading keep their partitions; the new list applies to the
// next ReadAll call.
func (s *Static) Update(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = slices.Clone(ids)
}
