package main

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/trace"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestExplorer(t *testing.T, name string) *exploreModel {
	t.Helper()
	resetFlags()
	ops, err := trace.ParseFile(testScriptPath(t, name))
	require.NoError(t, err)
	m, err := newExploreModel(name, ops)
	require.NoError(t, err)
	t.Cleanup(m.close)
	return m
}

func TestExplore_StepAndBack(t *testing.T) {
	m := newTestExplorer(t, "basic.trace")
	assert.Contains(t, m.View(), "No operations applied yet.")
	assert.Contains(t, m.View(), "(heap not initialized)")

	m.Update(keyMsg("n"))
	require.Equal(t, 1, m.next)
	view := m.View()
	assert.Contains(t, view, "[1/10]")
	assert.Contains(t, view, "line 2: alloc a 16 -> 0x0000000C")
	assert.Contains(t, view, "next: alloc b 100")
	assert.Contains(t, view, "written: 0x0+12 0x1C+12")

	m.Update(keyMsg("n"))
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	require.Equal(t, 3, m.next)

	m.Update(keyMsg("p"))
	require.Equal(t, 2, m.next)
	assert.Contains(t, m.View(), "alloc b 100 -> 0x00000028")

	m.Update(keyMsg("r"))
	require.Equal(t, 0, m.next)
	assert.Contains(t, m.View(), "No operations applied yet.")
}

func TestExplore_RunToEnd(t *testing.T) {
	m := newTestExplorer(t, "basic.trace")

	m.Update(keyMsg("G"))
	require.Equal(t, 10, m.next)
	require.NoError(t, m.err)
	view := m.View()
	assert.Contains(t, view, "end of script")
	assert.Contains(t, view, "0x0001117C")

	m.Update(keyMsg("t"))
	assert.NotContains(t, m.View(), "0x0001117C", "table hidden")

	// Stepping past the end is a no-op.
	m.Update(keyMsg("n"))
	require.Equal(t, 10, m.next)

	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
}

func TestExplore_ScriptError(t *testing.T) {
	resetFlags()
	ops, err := trace.Parse(stringsReader("alloc a 4\nfree ghost\nalloc b 4\n"))
	require.NoError(t, err)
	m, err := newExploreModel("inline", ops)
	require.NoError(t, err)
	defer m.close()

	err = m.runAll(context.Background())
	require.ErrorIs(t, err, trace.ErrUnknownName)
	require.Equal(t, 2, m.next, "stepping stops at the failing op")
	assert.Contains(t, m.View(), "error: line 2")
}

func TestExplore_WindowSize(t *testing.T) {
	m := newTestExplorer(t, "basic.trace")
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 20})
	require.Equal(t, 40, m.width)
}

func TestExplore_HelpOverlay(t *testing.T) {
	m := newTestExplorer(t, "basic.trace")

	m.Update(keyMsg("?"))
	require.True(t, m.showHelp)
	view := m.View()
	assert.Contains(t, view, "toggle table")
	assert.Contains(t, view, "press any key to close")

	// The key that closes the overlay is not applied.
	m.Update(keyMsg("n"))
	require.False(t, m.showHelp)
	require.Equal(t, 0, m.next)
	assert.NotContains(t, m.View(), "press any key to close")
}

func TestExplore_CopyChain(t *testing.T) {
	m := newTestExplorer(t, "basic.trace")
	var copied string
	m.copyText = func(s string) error {
		copied = s
		return nil
	}

	m.Update(keyMsg("G"))
	m.Update(keyMsg("y"))
	assert.Equal(t, "0x00000000 70012 used\n0x0001117C 61060 free\n", copied)
	assert.Contains(t, m.View(), "copied 2 blocks to clipboard")

	m.copyText = func(string) error { return errors.New("no clipboard") }
	m.Update(keyMsg("y"))
	assert.Contains(t, m.View(), "copy failed: no clipboard")
}
