package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanin/types"
)

func TestNewNop(t *testing.T) {
	hooks := NewNop()
	require.NotNil(t, hooks.OnReaderStarted)
	require.NotNil(t, hooks.OnReaderStopped)
	require.NotNil(t, hooks.OnStreamCompleted)

	ctx := t.Context()
	require.NoError(t, hooks.OnReaderStarted(ctx, "0"))
	require.NoError(t, hooks.OnReaderStopped(ctx, "0", errors.New("boom")))
	require.NoError(t, hooks.OnStreamCompleted(ctx, nil))
}

func TestFill(t *testing.T) {
	t.Run("nil hooks", func(t *testing.T) {
		h := Fill(nil)
		require.NotNil(t, h.OnReaderStarted)
	})

	t.Run("keeps custom callbacks", func(t *testing.T) {
		var stopped []string
		h := Fill(&types.Hooks{
			OnReaderStopped: func(_ context.Context, partition string, _ error) error {
				stopped = append(stopped, partition)
				return nil
			},
		})

		require.NoError(t, h.OnReaderStarted(t.Context(), "1"))
		require.NoError(t, h.OnReaderStopped(t.Context(), "1", nil))
		require.NoError(t, h.OnStreamCompleted(t.Context(), nil))
		require.Equal(t, []string{"1"}, stopped)
	})
}
