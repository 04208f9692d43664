// Package heap provides the linear address spaces the heapkit allocators
// manage.
//
// # Overview
//
// An address space is a flat, zero-based byte range that can only grow, and
// only in whole 64 KiB pages. This is the memory model of a WebAssembly
// linear memory: the host answers "how many pages are there" and "grow by n
// pages", and the program owns every byte it has grown.
//
// # Space Interface
//
//   - Pages(): current size in pages
//   - Grow(delta): add delta pages, returning the previous page count or
//     ok = false when the host refuses
//   - Bytes(): a view of the whole current range
//
// Byte views may be invalidated by Grow (a slice-backed or wazero memory can
// move when it grows), so callers must re-fetch Bytes() after growing.
//
// # Implementations
//
//   - SliceSpace: a growable Go byte slice, bounded by a page limit
//   - MmapSpace: an anonymous mapping reserved up front and committed page by
//     page, so views stay valid across growth (unix only; other platforms
//     fall back to a SliceSpace)
//   - WrapMemory: adapts a wazero api.Memory, the memory of a running
//     WebAssembly module
//
// # Pointers
//
// Ptr is a 32-bit offset into a Space. Null (0) is never a valid payload
// address.
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/heap/alloc: first-fit and bump allocators over a Space
//   - github.com/joshuapare/heapkit/heap/verify: invariant checks over a Space's bytes
//   - github.com/joshuapare/heapkit/heap/hostmod: exposes an allocator to wasm guests
package heap
