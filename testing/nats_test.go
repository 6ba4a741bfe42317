package testing

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(1*time.Second))
	require.True(t, ns.JetStreamEnabled())
}

func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	t.Parallel()

	for range 3 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestCreateStreamAndPublish(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)
	stream := CreateStream(t, nc, "EVENTS", "events.>")

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	PublishN(t.Context(), t, js, "events.0", 3)
	PublishN(t.Context(), t, js, "events.1", 2)

	info, err := stream.Info(t.Context())
	require.NoError(t, err)
	require.Equal(t, uint64(5), info.State.Msgs)
	require.Equal(t, []string{"events.>"}, info.Config.Subjects)
}
