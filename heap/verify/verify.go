package verify

import (
	"fmt"
	"sort"

	"github.com/joshuapare/heapkit/internal/format"
)

// ValidationError describes the first invariant violation found.
type ValidationError struct {
	Type    string
	Message string
	Offset  int
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type block struct {
	addr uint32
	hdr  format.Header
}

// AllInvariants validates the chain structure and the coalescing invariant
// in one call. Returns the first error encountered, or nil if all checks pass.
func AllInvariants(data []byte, head uint32) error {
	if err := ChainStructure(data, head); err != nil {
		return err
	}
	return Coalesced(data, head)
}

// ChainStructure validates that the chain starting at head tiles the space
// from head to the end of data without gaps.
func ChainStructure(data []byte, head uint32) error {
	_, err := walk(data, head, "ChainStructure")
	return err
}

// walk decodes every block from head, checking structure as it goes.
func walk(data []byte, head uint32, kind string) ([]block, error) {
	if uint64(head)%format.WordAlignment != 0 {
		return nil, &ValidationError{
			Type:    kind,
			Message: "head is not word aligned",
			Offset:  int(head),
		}
	}

	var out []block
	cur := head
	for {
		h, err := format.ReadHeader(data, cur)
		if err != nil {
			return out, &ValidationError{
				Type:    kind,
				Message: fmt.Sprintf("unreadable header: %v", err),
				Offset:  int(cur),
			}
		}
		if uint64(h.Size)%format.WordAlignment != 0 {
			return out, &ValidationError{
				Type:    kind,
				Message: fmt.Sprintf("size %d is not word aligned", h.Size),
				Offset:  int(cur),
			}
		}
		end := h.End(cur)
		if end > uint64(len(data)) {
			return out, &ValidationError{
				Type:    kind,
				Message: fmt.Sprintf("block of %d bytes extends beyond space: end=0x%X, space=0x%X", h.Size, end, len(data)),
				Offset:  int(cur),
			}
		}
		out = append(out, block{addr: cur, hdr: h})

		if h.Next == format.NoNext {
			if end != uint64(len(data)) {
				return out, &ValidationError{
					Type:    kind,
					Message: fmt.Sprintf("tail ends at 0x%X but space ends at 0x%X", end, len(data)),
					Offset:  int(cur),
				}
			}
			return out, nil
		}
		if uint64(h.Next) != end {
			return out, &ValidationError{
				Type:    kind,
				Message: fmt.Sprintf("next=0x%X, expected=0x%X", h.Next, end),
				Offset:  int(cur),
			}
		}
		cur = h.Next
	}
}

// Coalesced validates that no two adjacent blocks are both free.
func Coalesced(data []byte, head uint32) error {
	blocks, err := walk(data, head, "Coalesced")
	if err != nil {
		return err
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i-1].hdr.Free && blocks[i].hdr.Free {
			return &ValidationError{
				Type:    "Coalesced",
				Message: fmt.Sprintf("free block followed by free block at 0x%X", blocks[i].addr),
				Offset:  int(blocks[i-1].addr),
			}
		}
	}
	return nil
}

// Payloads validates live allocations against the chain. allocs maps each
// payload address to the number of bytes the client requested. Every payload
// must start right after the header of an in-use block and fit inside it;
// since blocks are disjoint, distinct payloads then never overlap.
func Payloads(data []byte, head uint32, allocs map[uint32]uint32) error {
	blocks, err := walk(data, head, "Payloads")
	if err != nil {
		return err
	}
	byAddr := make(map[uint32]format.Header, len(blocks))
	for _, b := range blocks {
		byAddr[b.addr] = b.hdr
	}

	// Deterministic order so the same state always reports the same error.
	ptrs := make([]uint32, 0, len(allocs))
	for p := range allocs {
		ptrs = append(ptrs, p)
	}
	sort.Slice(ptrs, func(i, j int) bool { return ptrs[i] < ptrs[j] })

	for _, p := range ptrs {
		n := allocs[p]
		if p < format.HeaderSize {
			return &ValidationError{
				Type:    "Payloads",
				Message: "payload address below header size",
				Offset:  int(p),
			}
		}
		h, ok := byAddr[p-format.HeaderSize]
		if !ok {
			return &ValidationError{
				Type:    "Payloads",
				Message: "payload does not follow a block header",
				Offset:  int(p),
			}
		}
		if h.Free {
			return &ValidationError{
				Type:    "Payloads",
				Message: "live payload is inside a free block",
				Offset:  int(p),
			}
		}
		if n > h.PayloadCap() {
			return &ValidationError{
				Type:    "Payloads",
				Message: fmt.Sprintf("payload of %d bytes exceeds block capacity %d", n, h.PayloadCap()),
				Offset:  int(p),
			}
		}
	}
	return nil
}

// BlockInfo is one decoded block of a chain.
type BlockInfo struct {
	Addr uint32
	Next uint32
	Size uint32
	Free bool
}

// Blocks decodes every block of the chain at head. It checks the same
// structure as ChainStructure and returns the blocks decoded before the
// first violation together with the error.
func Blocks(data []byte, head uint32) ([]BlockInfo, error) {
	bs, err := walk(data, head, "Blocks")
	out := make([]BlockInfo, 0, len(bs))
	for _, b := range bs {
		out = append(out, BlockInfo{Addr: b.addr, Next: b.hdr.Next, Size: b.hdr.Size, Free: b.hdr.Free})
	}
	return out, err
}
