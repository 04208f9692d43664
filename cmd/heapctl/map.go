package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	mapWidth int
)

func init() {
	cmd := newMapCmd()
	addHeapFlags(cmd)
	cmd.Flags().IntVar(&mapWidth, "width", 64, "Map width in cells")
	rootCmd.AddCommand(cmd)
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map <script>",
		Short: "Draw the block chain after replaying a script",
		Long: `The map command replays a script and draws the resulting chain, one
cell run per block, scaled to the heap size. Blocks whose header the last
operation wrote are highlighted.

Example:
  heapctl map workload.trace
  heapctl map workload.trace --width 100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(args)
		},
	}
	return cmd
}

func runMap(args []string) error {
	s, res, err := replay(args[0], false)
	if err != nil {
		return err
	}
	defer s.Close()

	if jsonOut {
		return printJSON(struct {
			Blocks any      `json:"blocks"`
			Pages  []uint32 `json:"changed_pages"`
		}{res.Blocks, s.dirty.Pages()})
	}

	title := fmt.Sprintf("%s: %d pages, %d blocks", res.Script, res.Usage.Pages, res.Usage.Blocks)
	printInfo("%s\n", headerStyle.Render(title))
	printInfo("%s\n", paneStyle.Render(renderMap(res.Blocks, mapWidth, s.dirty)))
	printVerbose("%s", renderTable(res.Blocks, 0, s.dirty))
	return nil
}
