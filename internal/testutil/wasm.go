// Package testutil holds helpers shared by heapkit tests that run modules
// under wazero.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// NewRuntime creates a wazero runtime that is closed when the test ends.
func NewRuntime(t testing.TB) (context.Context, wazero.Runtime) {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })
	return ctx, r
}

// InstantiateMemory instantiates bin (which must export "memory") under a
// fresh runtime and returns its memory.
func InstantiateMemory(t testing.TB, bin []byte) api.Memory {
	t.Helper()
	ctx, r := NewRuntime(t)
	mod, err := r.Instantiate(ctx, bin)
	require.NoError(t, err)
	mem := mod.ExportedMemory("memory")
	require.NotNil(t, mem, "module should export memory")
	return mem
}
