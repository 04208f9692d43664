package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/verify"
	"github.com/joshuapare/heapkit/internal/mmfile"
)

var (
	inspectHead   uint32
	inspectStrict bool
	inspectLimit  int
)

func init() {
	cmd := newInspectCmd()
	cmd.Flags().Uint32Var(&inspectHead, "head", 0, "Address of the first block in the image")
	cmd.Flags().BoolVar(&inspectStrict, "strict", false, "Also require that no two adjacent blocks are free")
	cmd.Flags().IntVar(&inspectLimit, "limit", 0, "Show at most this many blocks (0 for all)")
	rootCmd.AddCommand(cmd)
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Verify and list the blocks of a heap image",
		Long: `The inspect command maps a heap image written by "run --dump" and walks
its block chain. It prints the blocks it could decode and fails with the
first invariant violation.

Use --strict for images from the first-fit allocator, which keeps free
blocks coalesced. Bump allocator images generally fail --strict.

Example:
  heapctl inspect heap.img
  heapctl inspect heap.img --strict --limit 20
  heapctl inspect heap.img --head 0x20000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args)
		},
	}
	return cmd
}

type inspectResult struct {
	Image  string        `json:"image"`
	Head   uint32        `json:"head"`
	Blocks []alloc.Block `json:"blocks"`
	Usage  alloc.Usage   `json:"usage"`
	Error  string        `json:"error,omitempty"`
}

func runInspect(args []string) error {
	path := args[0]
	img, err := mmfile.Open(path)
	if err != nil {
		return err
	}
	defer img.Close()
	data := img.Data

	if len(data)%heap.PageSize != 0 {
		return fmt.Errorf("%s is %d bytes, not a whole number of %d KiB pages", path, len(data), alloc.PageKB)
	}
	printVerbose("Mapped %d bytes from %s\n", len(data), path)

	infos, walkErr := verify.Blocks(data, inspectHead)
	if walkErr == nil && inspectStrict {
		walkErr = verify.Coalesced(data, inspectHead)
	}

	res := inspectResult{Image: path, Head: inspectHead}
	res.Usage.Pages = uint32(len(data) / heap.PageSize)
	for _, b := range infos {
		blk := alloc.Block{Addr: b.Addr, Next: b.Next, Size: b.Size, Free: b.Free}
		res.Blocks = append(res.Blocks, blk)
		tally(&res.Usage, blk)
	}
	if walkErr != nil {
		res.Error = walkErr.Error()
	}

	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
		return walkErr
	}

	printInfo("%s", renderTable(res.Blocks, inspectLimit, nil))
	u := res.Usage
	printInfo("\n%d pages, %d blocks (%d used, %d free), %d bytes used, %d bytes free, largest free %d\n",
		u.Pages, u.Blocks, u.UsedBlocks, u.FreeBlocks, u.UsedBytes, u.FreeBytes, u.LargestFree)

	var ve *verify.ValidationError
	switch {
	case walkErr == nil:
		printInfo("%s\n", okStyle.Render("Chain OK"))
	case errors.As(walkErr, &ve):
		return fmt.Errorf("image is corrupt: %w", walkErr)
	default:
		return walkErr
	}
	return nil
}

// tally adds one block to u.
func tally(u *alloc.Usage, b alloc.Block) {
	u.Blocks++
	u.HeapBytes += uint64(b.Size)
	if b.Free {
		u.FreeBlocks++
		u.FreeBytes += uint64(b.Size)
		u.LargestFree = max(u.LargestFree, b.Size)
		return
	}
	u.UsedBlocks++
	u.UsedBytes += uint64(b.Size)
}
