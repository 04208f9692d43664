// Package wasmbin holds small hand-assembled WebAssembly modules used by
// tests and examples.
package wasmbin

// MemoryOnly is a module with a single exported memory "memory" that
// starts at zero pages and has no maximum.
//
//	(module (memory (export "memory") 0))
var MemoryOnly = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// memory section: 1 memory, no max, min 0
	0x05, 0x03, 0x01, 0x00, 0x00,
	// export section: "memory" -> memory 0
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

// BoundedMemory is MemoryOnly with a maximum of two pages.
//
//	(module (memory (export "memory") 0 2))
var BoundedMemory = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// memory section: 1 memory, min 0, max 2
	0x05, 0x04, 0x01, 0x01, 0x00, 0x02,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

// Guest imports heap.malloc and heap.free and re-exports them as "alloc"
// and "release" alongside its memory.
//
//	(module
//	  (import "heap" "malloc" (func $malloc (param i32) (result i32)))
//	  (import "heap" "free" (func $free (param i32)))
//	  (memory (export "memory") 0)
//	  (func (export "alloc") (param i32) (result i32) local.get 0 call $malloc)
//	  (func (export "release") (param i32) local.get 0 call $free))
var Guest = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section: (i32)->(i32), (i32)->()
	0x01, 0x0a, 0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x01, 0x7f, 0x00,
	// import section
	0x02, 0x1b, 0x02,
	0x04, 'h', 'e', 'a', 'p', 0x06, 'm', 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,
	0x04, 'h', 'e', 'a', 'p', 0x04, 'f', 'r', 'e', 'e', 0x00, 0x01,
	// function section: func 2 has type 0, func 3 has type 1
	0x03, 0x03, 0x02, 0x00, 0x01,
	// memory section
	0x05, 0x03, 0x01, 0x00, 0x00,
	// export section
	0x07, 0x1c, 0x03,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x05, 'a', 'l', 'l', 'o', 'c', 0x00, 0x02,
	0x07, 'r', 'e', 'l', 'e', 'a', 's', 'e', 0x00, 0x03,
	// code section
	0x0a, 0x0f, 0x02,
	0x06, 0x00, 0x20, 0x00, 0x10, 0x00, 0x0b,
	0x06, 0x00, 0x20, 0x00, 0x10, 0x01, 0x0b,
}
