// Package source provides PartitionDiscovery implementations that do not
// depend on a transport.
package source
