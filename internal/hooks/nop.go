// Package hooks provides default lifecycle hook implementations.
package hooks

import (
	"context"

	"github.com/arloliu/fanin/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, string) error        = (*NopHooks)(nil).OnReaderStarted
	_ func(context.Context, string, error) error = (*NopHooks)(nil).OnReaderStopped
	_ func(context.Context, error) error         = (*NopHooks)(nil).OnStreamCompleted
)

// NewNop creates a new no-op hooks implementation.
func NewNop() *types.Hooks {
	h := &NopHooks{}
	return &types.Hooks{
		OnReaderStarted:   h.OnReaderStarted,
		OnReaderStopped:   h.OnReaderStopped,
		OnStreamCompleted: h.OnStreamCompleted,
	}
}

// Fill returns a copy of h with every nil callback replaced by a no-op.
// A nil h yields NewNop().
func Fill(h *types.Hooks) *types.Hooks {
	if h == nil {
		return NewNop()
	}

	nop := &NopHooks{}
	out := *h
	if out.OnReaderStarted == nil {
		out.OnReaderStarted = nop.OnReaderStarted
	}
	if out.OnReaderStopped == nil {
		out.OnReaderStopped = nop.OnReaderStopped
	}
	if out.OnStreamCompleted == nil {
		out.OnStreamCompleted = nop.OnStreamCompleted
	}

	return &out
}

// OnReaderStarted is a no-op implementation.
func (h *NopHooks) OnReaderStarted(_ context.Context, _ string) error {
	return nil
}

// OnReaderStopped is a no-op implementation.
func (h *NopHooks) OnReaderStopped(_ context.Context, _ string, _ error) error {
	return nil
}

// OnStreamCompleted is a no-op implementation.
func (h *NopHooks) OnStreamCompleted(_ context.Context, _ error) error {
	return nil
}
