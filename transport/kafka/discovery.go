package kafka

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/arloliu/fanin/types"
)

// PartitionLister is implemented by sarama.Client and sarama.Consumer.
type PartitionLister interface {
	Partitions(topic string) ([]int32, error)
}

// Discovery lists the partitions of a topic.
type Discovery struct {
	lister PartitionLister
	topic  string
}

var _ types.PartitionDiscovery = (*Discovery)(nil)

// NewDiscovery creates a discovery for topic.
func NewDiscovery(lister PartitionLister, topic string) (*Discovery, error) {
	if lister == nil {
		return nil, fmt.Errorf("%w: partition lister is required", types.ErrInvalidConfig)
	}
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", types.ErrInvalidConfig)
	}

	return &Discovery{lister: lister, topic: topic}, nil
}

// ListPartitionIDs returns the topic's partitions as decimal ids in numeric order.
func (d *Discovery) ListPartitionIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	partitions, err := d.lister.Partitions(d.topic)
	if err != nil {
		return nil, Classify("", "list", err)
	}

	partitions = slices.Clone(partitions)
	slices.Sort(partitions)

	ids := make([]string, 0, len(partitions))
	for _, p := range slices.Compact(partitions) {
		ids = append(ids, strconv.FormatInt(int64(p), 10))
	}

	return ids, nil
}
