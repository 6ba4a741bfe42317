// Package testing provides test utilities for the fanin library.
//
// It follows the net/http/httptest convention of shipping test helpers in a
// dedicated package.
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateStream / PublishN: JetStream stream fixtures for transport tests
//   - ScriptedTransport: In-memory TransportFactory and PartitionDiscovery
//     replaying scripted batches and errors, counting opens and closes
//
// Example usage:
//
//	import (
//	    "testing"
//	    fanintest "github.com/arloliu/fanin/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    tr := fanintest.NewScriptedTransport().
//	        Script("0", fanintest.Step{Events: fanintest.Events("0", 1, 3)})
//	    // pass tr as both factory and discovery
//	}
package testing
