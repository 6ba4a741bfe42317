// Package kafka reads fanin partitions from the partitions of a Kafka topic.
//
// Partition identities are the decimal partition numbers of the configured
// topic. Every reader owns one sarama.PartitionConsumer; no consumer group is
// joined and no offsets are committed.
//
// ConfigureSecurity prepares a sarama.Config for SSL, SASL_PLAINTEXT or SASL_SSL
// brokers using PLAIN, SCRAM-SHA-256, SCRAM-SHA-512 or AWS MSK IAM authentication.
package kafka
