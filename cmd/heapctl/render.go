package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/dirty"
)

const (
	glyphUsed    = "█"
	glyphFree    = "░"
	glyphChanged = "▓"
)

// renderMap draws the chain as rows of width cells. Every block gets at
// least one cell; larger blocks get cells in proportion to their size.
// Blocks whose header was written since the tracker was last reset are drawn
// as changed.
func renderMap(blocks []alloc.Block, width int, dt *dirty.Tracker) string {
	if len(blocks) == 0 {
		return mutedStyle.Render("(heap not initialized)")
	}
	if width < 8 {
		width = 8
	}

	var total uint64
	for _, b := range blocks {
		total += uint64(b.Size)
	}
	budget := uint64(width * 4) // four rows for a typical heap

	type run struct {
		n     int
		glyph string
		style lipgloss.Style
	}
	runs := make([]run, 0, len(blocks))
	for _, b := range blocks {
		n := int(uint64(b.Size) * budget / total)
		if n < 1 {
			n = 1
		}
		r := run{n: n, glyph: glyphUsed, style: usedStyle}
		switch {
		case dt != nil && dt.Touched(int64(b.Addr)):
			r.glyph, r.style = glyphChanged, changedStyle
		case b.Free:
			r.glyph, r.style = glyphFree, freeStyle
		}
		runs = append(runs, r)
	}

	var sb strings.Builder
	col := 0
	for _, r := range runs {
		for r.n > 0 {
			take := min(r.n, width-col)
			sb.WriteString(r.style.Render(strings.Repeat(r.glyph, take)))
			r.n -= take
			col += take
			if col == width {
				sb.WriteByte('\n')
				col = 0
			}
		}
	}
	if col != 0 {
		sb.WriteByte('\n')
	}
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("%s used  %s free  %s changed", glyphUsed, glyphFree, glyphChanged)))
	return sb.String()
}

// renderTable lists up to limit blocks (all when limit <= 0).
func renderTable(blocks []alloc.Block, limit int, dt *dirty.Tracker) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-10s  %10s  %-5s  %-10s", "Addr", "Size", "State", "Next")))
	sb.WriteByte('\n')
	for i, b := range blocks {
		if limit > 0 && i == limit {
			sb.WriteString(mutedStyle.Render(fmt.Sprintf("... %d more blocks", len(blocks)-limit)))
			sb.WriteByte('\n')
			break
		}
		state, style := "used", usedStyle
		if b.Free {
			state, style = "free", freeStyle
		}
		if dt != nil && dt.Touched(int64(b.Addr)) {
			style = changedStyle
		}
		next := "-"
		if b.Next != 0 {
			next = fmt.Sprintf("0x%08X", b.Next)
		}
		sb.WriteString(style.Render(fmt.Sprintf("0x%08X  %10d  %-5s  %-10s", b.Addr, b.Size, state, next)))
		sb.WriteByte('\n')
	}
	return sb.String()
}
