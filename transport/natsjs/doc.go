// Package natsjs reads fanin partitions from a NATS JetStream stream.
//
// A partition is a subject of the stream, derived from its identity through a
// text/template (for example "events.{{.PartitionID}}"). Each reader gets its
// own ephemeral pull consumer filtered on that subject, with AckNone so that
// reading never mutates delivery state; the consumer is deleted when the
// reader releases it and expires through InactiveThreshold otherwise.
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	cfg := natsjs.Config{StreamName: "EVENTS", SubjectTemplate: "events.{{.PartitionID}}"}
//	factory, _ := natsjs.NewFactory(js, cfg)
//	discovery, _ := natsjs.NewDiscovery(js, cfg)
//	consumer, _ := fanin.NewConsumer(&fanCfg, factory, discovery)
package natsjs
