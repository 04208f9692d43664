package heap

import (
	"github.com/tetratelabs/wazero/api"
)

// WasmSpace adapts the linear memory of a wazero module to Space.
type WasmSpace struct {
	mem api.Memory
}

// WrapMemory returns a Space over mem. The allocator treats every page the
// memory already has as owned by someone else and only manages pages it
// grows itself.
func WrapMemory(mem api.Memory) *WasmSpace {
	return &WasmSpace{mem: mem}
}

// Memory returns the wrapped wazero memory.
func (w *WasmSpace) Memory() api.Memory { return w.mem }

func (w *WasmSpace) Pages() uint32 { return w.mem.Size() / PageSize }

func (w *WasmSpace) Grow(delta uint32) (uint32, bool) {
	return w.mem.Grow(delta)
}

// Bytes returns a view of the memory's current buffer. wazero may replace the
// buffer when the memory grows, so the view must be re-fetched afterwards.
func (w *WasmSpace) Bytes() []byte {
	b, ok := w.mem.Read(0, w.mem.Size())
	if !ok {
		return nil
	}
	return b
}

// Compile-time interface check
var _ Space = (*WasmSpace)(nil)
