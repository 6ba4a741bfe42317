package natsjs

import (
	"context"
	"fmt"
	"slices"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/fanin/internal/natsutil"
	"github.com/arloliu/fanin/types"
)

// Discovery lists partitions from the subjects retained by a stream.
//
// Only subjects that currently hold at least one message are visible, so a
// partition appears once something was published to it.
type Discovery struct {
	js       jetstream.JetStream
	cfg      Config
	subjects *subjects
}

var _ types.PartitionDiscovery = (*Discovery)(nil)

// NewDiscovery creates a discovery for the configured stream and subject template.
func NewDiscovery(js jetstream.JetStream, cfg Config) (*Discovery, error) {
	if js == nil {
		return nil, fmt.Errorf("%w: jetstream context is required", types.ErrInvalidConfig)
	}

	cfg.applyDefaults()
	subj, err := parseSubjects(cfg)
	if err != nil {
		return nil, err
	}

	return &Discovery{js: js, cfg: cfg, subjects: subj}, nil
}

// ListPartitionIDs returns the sorted partition ids whose subjects hold messages.
func (d *Discovery) ListPartitionIDs(ctx context.Context) ([]string, error) {
	stream, err := d.js.Stream(ctx, d.cfg.StreamName)
	if err != nil {
		return nil, natsutil.Classify("", "list", err)
	}

	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(d.subjects.filter()))
	if err != nil {
		return nil, natsutil.Classify("", "list", err)
	}

	ids := make([]string, 0, len(info.State.Subjects))
	for subject := range info.State.Subjects {
		if id, ok := d.subjects.partitionOf(subject); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	d.cfg.Logger.Debug("discovered partitions", "stream", d.cfg.StreamName, "partitions", len(ids))

	return ids, nil
}
