// Package fanin reads events concurrently from the partitions of a partitioned
// event stream and republishes them through a single consumable stream.
//
// Each partition is read by its own background reader. Readers retry transient
// transport failures on their own, write into one bounded buffer shared by the
// stream, and block (never drop) while that buffer is full. The first fatal
// reader error stops all sibling readers and becomes the stream's single
// terminal error.
//
// # Quick Start
//
// Reading every partition of a JetStream stream:
//
//	import (
//	    "github.com/arloliu/fanin"
//	    "github.com/arloliu/fanin/transport/natsjs"
//	)
//
//	js, _ := jetstream.New(nc)
//	jsCfg := natsjs.Config{StreamName: "EVENTS", SubjectTemplate: "events.{{.PartitionID}}"}
//	factory, _ := natsjs.NewFactory(js, jsCfg)
//	discovery, _ := natsjs.NewDiscovery(js, jsCfg)
//
//	cfg := fanin.DefaultConfig()
//	consumer, err := fanin.NewConsumer(&cfg, factory, discovery)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer consumer.Close(context.Background())
//
//	stream, err := consumer.ReadAll(ctx, fanin.ReadOptions{StartPosition: fanin.Earliest()})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for ev, err := range stream.All(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(ev.Partition, ev.Sequence, string(ev.Data))
//	}
//
// # Guarantees
//
//   - Events of one partition are delivered in transport order
//   - No ordering across partitions, and no fairness between partitions under backpressure
//   - Buffered events never exceed partitions x Config.MaxBatchSize
//   - A stream ends cleanly, with the first fatal reader error, or with the
//     caller's cancellation error, never with a collection of partial errors
//   - Every reader has terminated and released its transport handle before a
//     terminal result is returned
//
// # Error Taxonomy
//
// Transports classify failures as transient (retried per RetryPolicy),
// non-retryable (ErrConsumerDisconnected, ErrStreamClosed) or resource exhaustion
// (ErrResourceExhausted, propagated without retry). Cancellation is not a
// failure; use IsCancellation together with ctx.Err() to tell it apart, since a
// transport request timeout also wraps context.DeadlineExceeded.
//
// See the examples/ directory and cmd/fanin-tail for complete programs.
package fanin
