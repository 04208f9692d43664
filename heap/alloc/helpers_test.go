package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/verify"
)

// newTestManager creates a Manager over an empty slice space capped at maxPages.
func newTestManager(t testing.TB, maxPages uint32) (*Manager, *heap.SliceSpace) {
	t.Helper()
	sp := heap.NewSliceSpace(0, maxPages)
	return New(sp, nil, nil), sp
}

// requireInvariants fails the test if the chain structure is broken. When
// coalesced is set, adjacent free blocks are also an error.
func requireInvariants(t testing.TB, a Allocator, coalesced bool) {
	t.Helper()
	head, ok := a.Head()
	if !ok {
		return
	}
	data := a.Space().Bytes()
	if coalesced {
		require.NoError(t, verify.AllInvariants(data, head))
		return
	}
	require.NoError(t, verify.ChainStructure(data, head))
}

// snapshot copies the whole space so tests can compare before and after.
func snapshot(sp heap.Space) []byte {
	return append([]byte(nil), sp.Bytes()...)
}

// blocks returns the chain or fails the test.
func blocks(t testing.TB, m *Manager) []Block {
	t.Helper()
	out, err := m.Blocks()
	require.NoError(t, err)
	return out
}
