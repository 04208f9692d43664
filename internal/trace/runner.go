package trace

import (
	"context"

	"github.com/pkg/errors"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/alloc"
)

// Step is the outcome of one operation.
type Step struct {
	Index int // Position in the script, 0-based
	Op    Op
	Ptr   heap.Ptr // alloc: returned pointer; free: pointer passed to Free
	Pages uint32   // Address space size after the operation
	Err   error    // Allocator error, if any
}

// Runner replays operations against an allocator, tracking named pointers
// and the set of live allocations.
//
// NOT thread-safe.
type Runner struct {
	a     alloc.Allocator
	names map[string]heap.Ptr
	live  map[heap.Ptr]uint32
	steps int
}

// NewRunner creates a Runner over a.
func NewRunner(a alloc.Allocator) *Runner {
	return &Runner{
		a:     a,
		names: make(map[string]heap.Ptr),
		live:  make(map[heap.Ptr]uint32),
	}
}

// Allocator returns the allocator the runner drives.
func (r *Runner) Allocator() alloc.Allocator { return r.a }

// Step executes op. Allocator failures are reported in Step.Err; the
// returned error is reserved for script errors such as an unknown name.
func (r *Runner) Step(op Op) (Step, error) {
	st := Step{Index: r.steps, Op: op}
	r.steps++

	switch op.Kind {
	case OpAlloc:
		p, err := r.a.Alloc(op.Size)
		st.Ptr, st.Err = p, err
		if err == nil {
			r.names[op.Name] = p
			r.live[p] = op.Size
		}

	case OpFree:
		p, err := r.resolve(op)
		if err != nil {
			return st, errors.Wrapf(err, "line %d", op.Line)
		}
		st.Ptr = p
		st.Err = r.a.Free(p)
		if st.Err == nil {
			delete(r.live, p)
		}

	case OpGrow:
		st.Err = r.a.GrowByPages(op.Pages)

	default:
		return st, errors.Errorf("line %d: unknown operation %v", op.Line, op.Kind)
	}

	st.Pages = r.a.Space().Pages()
	return st, nil
}

func (r *Runner) resolve(op Op) (heap.Ptr, error) {
	if op.Raw {
		return op.Addr, nil
	}
	base, ok := r.names[op.Name]
	if !ok {
		return heap.Null, errors.Wrapf(ErrUnknownName, "%q", op.Name)
	}
	addr := int64(base) + op.Offset
	if addr < 0 || addr > int64(^heap.Ptr(0)) {
		return heap.Null, errors.Wrapf(ErrBadAddress, "%s = %d", op, addr)
	}
	return heap.Ptr(addr), nil
}

// Run executes ops in order, calling fn after each one. It stops at the first
// script error, the first error from fn, or when ctx is done.
func (r *Runner) Run(ctx context.Context, ops []Op, fn func(Step) error) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := r.Step(op)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(st); err != nil {
				return err
			}
		}
	}
	return nil
}

// Live returns the live allocations as payload address to requested size,
// the form verify.Payloads takes.
func (r *Runner) Live() map[uint32]uint32 {
	out := make(map[uint32]uint32, len(r.live))
	for p, n := range r.live {
		out[p] = n
	}
	return out
}

// Lookup returns the pointer currently bound to name.
func (r *Runner) Lookup(name string) (heap.Ptr, bool) {
	p, ok := r.names[name]
	return p, ok
}
