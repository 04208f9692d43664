// Package hostmod exposes heap allocation to WebAssembly guests as a wazero
// host module.
//
// The module is named "heap" and exports:
//
//	malloc(size i32) -> i32
//	free(ptr i32)
//
// Each calling guest gets its own alloc.Manager over the guest's linear
// memory, created on its first call. Pages the guest already had are left to
// the guest; the heap starts at the first page the manager grows. Allocation
// failures and corrupt chains panic inside the host function, which wazero
// turns into a trap returned from the guest's exported call.
package hostmod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/alloc"
)

// ModuleName is the import module name guests use.
const ModuleName = "heap"

// ErrNoMemory indicates a calling guest without a linear memory.
var ErrNoMemory = errors.New("hostmod: guest has no memory")

// Host holds one heap per guest module.
//
// Thread-safe: guests may call in from different goroutines, but each guest's
// heap must only be driven by one goroutine at a time.
type Host struct {
	mu    sync.Mutex
	cfg   alloc.Config
	heaps map[api.Module]*alloc.Manager
}

// New creates a Host whose managers use cfg (nil for alloc.DefaultConfig).
func New(cfg *alloc.Config) *Host {
	c := alloc.DefaultConfig
	if cfg != nil {
		c = *cfg
	}
	return &Host{
		cfg:   c,
		heaps: make(map[api.Module]*alloc.Manager),
	}
}

// Instantiate defines and instantiates the "heap" module in r. It must run
// before any guest that imports it is instantiated.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	i32 := []api.ValueType{api.ValueTypeI32}
	mod, err := r.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.malloc), i32, i32).
		WithParameterNames("size").
		Export("malloc").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.free), i32, nil).
		WithParameterNames("ptr").
		Export("free").
		Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s module: %w", ModuleName, err)
	}
	return mod, nil
}

// Manager returns the heap of mod, if mod has allocated through the host.
func (h *Host) Manager(mod api.Module) (*alloc.Manager, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.heaps[mod]
	return m, ok
}

// Forget drops the heap of mod. Call it when the guest is closed.
func (h *Host) Forget(mod api.Module) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.heaps, mod)
}

// Len returns the number of guests with a heap.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.heaps)
}

func (h *Host) managerFor(mod api.Module) *alloc.Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.heaps[mod]; ok {
		return m
	}
	mem := mod.Memory()
	if mem == nil {
		panic(fmt.Errorf("%w: %s", ErrNoMemory, mod.Name()))
	}
	cfg := h.cfg
	if cfg.Logger != nil {
		cfg.Logger = cfg.Logger.With(slog.String("guest", mod.Name()))
	}
	m := alloc.New(heap.WrapMemory(mem), nil, &cfg)
	h.heaps[mod] = m
	return m
}

func (h *Host) malloc(_ context.Context, mod api.Module, stack []uint64) {
	m := h.managerFor(mod)
	stack[0] = api.EncodeU32(m.Malloc(api.DecodeU32(stack[0])))
}

func (h *Host) free(_ context.Context, mod api.Module, stack []uint64) {
	h.managerFor(mod).Release(api.DecodeU32(stack[0]))
}
