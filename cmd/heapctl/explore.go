package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	overlay "github.com/rmhubbert/bubbletea-overlay"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/cmd/heapctl/logger"
	"github.com/joshuapare/heapkit/internal/trace"
)

func init() {
	cmd := newExploreCmd()
	addHeapFlags(cmd)
	rootCmd.AddCommand(cmd)
}

func newExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore <script>",
		Short: "Step through a script interactively",
		Long: `The explore command opens a terminal UI that applies a script one
operation at a time, drawing the chain after each step and highlighting the
headers the step wrote.

Example:
  heapctl explore workload.trace
  heapctl explore workload.trace --strategy bump`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplore(args)
		},
	}
	return cmd
}

func runExplore(args []string) error {
	ops, err := trace.ParseFile(args[0])
	if err != nil {
		return err
	}
	m, err := newExploreModel(args[0], ops)
	if err != nil {
		return err
	}
	defer m.close()

	logger.Info("starting explorer", "script", args[0], "ops", len(ops))
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// exploreModel is the bubbletea model of the explorer. Stepping back replays
// the script from a fresh session, since the allocator cannot undo.
type exploreModel struct {
	name string
	ops  []trace.Op
	keys KeyMap

	sess   *session
	runner *trace.Runner
	next   int         // index of the next op to apply
	last   *trace.Step // outcome of the most recent op
	err    error       // script or verification error that stops stepping

	showTable bool
	showHelp  bool
	width     int
	status    string // result of the last copy

	copyText func(string) error
}

func newExploreModel(name string, ops []trace.Op) (*exploreModel, error) {
	m := &exploreModel{
		name:      name,
		ops:       ops,
		keys:      DefaultKeyMap(),
		width:     80,
		showTable: true,
		copyText:  clipboard.WriteAll,
	}
	if err := m.reset(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *exploreModel) close() {
	if m.sess != nil {
		_ = m.sess.Close()
	}
}

func (m *exploreModel) reset() error {
	m.close()
	s, err := newSession()
	if err != nil {
		return err
	}
	m.sess = s
	m.runner = trace.NewRunner(s.alloc)
	m.next = 0
	m.last = nil
	m.err = nil
	return nil
}

// step applies the next op, verifying the heap afterwards.
func (m *exploreModel) step() {
	if m.err != nil || m.next >= len(m.ops) {
		return
	}
	m.sess.dirty.Reset()
	st, err := m.runner.Step(m.ops[m.next])
	m.next++
	if err != nil {
		m.err = err
		return
	}
	m.last = &st
	if err := m.sess.check(m.runner.Live()); err != nil {
		m.err = fmt.Errorf("invariant violated after line %d: %w", st.Op.Line, err)
	}
	logger.Debug("explorer step", "index", st.Index, "op", st.Op.String(), "ptr", st.Ptr)
}

// seek replays from scratch up to (but excluding) op n.
func (m *exploreModel) seek(n int) {
	if err := m.reset(); err != nil {
		m.err = err
		return
	}
	for m.next < n && m.err == nil {
		m.step()
	}
}

func (m *exploreModel) Init() tea.Cmd { return nil }

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if m.showHelp {
			// Any key closes the overlay.
			m.showHelp = false
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Step):
			m.step()
		case key.Matches(msg, m.keys.Back):
			if m.next > 0 {
				m.seek(m.next - 1)
			}
		case key.Matches(msg, m.keys.End):
			_ = m.runAll(context.Background())
		case key.Matches(msg, m.keys.Reset):
			m.seek(0)
		case key.Matches(msg, m.keys.Table):
			m.showTable = !m.showTable
		case key.Matches(msg, m.keys.Copy):
			m.copyChain()
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
		}
	}
	return m, nil
}

func (m *exploreModel) View() string {
	if m.showHelp {
		return overlay.New(staticView(m.helpView()), staticView(m.mainView()), overlay.Center, overlay.Center, 0, 0).View()
	}
	return m.mainView()
}

func (m *exploreModel) mainView() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("heapctl explore: %s  [%d/%d]", m.name, m.next, len(m.ops))))
	sb.WriteString("\n\n")

	switch {
	case m.last == nil:
		sb.WriteString(mutedStyle.Render("No operations applied yet."))
	case m.last.Err != nil:
		sb.WriteString(errorStyle.Render(fmt.Sprintf("line %d: %s -> %v", m.last.Op.Line, m.last.Op, m.last.Err)))
	default:
		sb.WriteString(fmt.Sprintf("line %d: %s -> 0x%08X", m.last.Op.Line, m.last.Op, m.last.Ptr))
	}
	sb.WriteString("\n")
	if m.next < len(m.ops) {
		sb.WriteString(mutedStyle.Render("next: " + m.ops[m.next].String()))
	} else {
		sb.WriteString(mutedStyle.Render("end of script"))
	}
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(errorStyle.Render("error: " + m.err.Error()))
		sb.WriteString("\n")
	}
	if m.status != "" {
		sb.WriteString(okStyle.Render(m.status))
		sb.WriteString("\n")
	}

	blocks, err := m.sess.alloc.Blocks()
	if err != nil {
		sb.WriteString(errorStyle.Render("walk: " + err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString(paneStyle.Render(renderMap(blocks, max(m.width-6, 8), m.sess.dirty)))
	sb.WriteString("\n")

	if m.showTable {
		sb.WriteString(renderTable(blocks, 16, m.sess.dirty))
	}
	if ranges := m.sess.dirty.Ranges(); len(ranges) > 0 {
		parts := make([]string, len(ranges))
		for i, r := range ranges {
			parts[i] = fmt.Sprintf("0x%X+%d", r.Off, r.Len)
		}
		sb.WriteString(changedStyle.Render("written: " + strings.Join(parts, " ")))
		sb.WriteString("\n")
	}

	help := make([]string, 0, len(m.keys.ShortHelp()))
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(strings.Join(help, " • ")))
	return sb.String()
}

// runAll applies every remaining op and returns the error that stopped it, if any.
func (m *exploreModel) runAll(ctx context.Context) error {
	for m.next < len(m.ops) && m.err == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.step()
	}
	return m.err
}

func (m *exploreModel) helpView() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Keys"))
	for _, b := range m.keys.FullHelp() {
		h := b.Help()
		sb.WriteString(fmt.Sprintf("\n%-4s %s", h.Key, h.Desc))
	}
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("press any key to close"))
	return paneStyle.Render(sb.String())
}

// copyChain puts a plain-text listing of the chain on the clipboard.
func (m *exploreModel) copyChain() {
	blocks, err := m.sess.alloc.Blocks()
	if err != nil {
		m.status = "copy failed: " + err.Error()
		return
	}
	var sb strings.Builder
	for _, b := range blocks {
		state := "used"
		if b.Free {
			state = "free"
		}
		fmt.Fprintf(&sb, "0x%08X %d %s\n", b.Addr, b.Size, state)
	}
	if err := m.copyText(sb.String()); err != nil {
		logger.Warn("clipboard write failed", "error", err)
		m.status = "copy failed: " + err.Error()
		return
	}
	m.status = fmt.Sprintf("copied %d blocks to clipboard", len(blocks))
}

// staticView is a tea.Model that always renders the same text.
type staticView string

func (v staticView) Init() tea.Cmd                       { return nil }
func (v staticView) Update(tea.Msg) (tea.Model, tea.Cmd) { return v, nil }
func (v staticView) View() string                        { return string(v) }
