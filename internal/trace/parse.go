package trace

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/joshuapare/heapkit/heap"
)

var (
	// ErrSyntax indicates a malformed script line.
	ErrSyntax = errors.New("trace: syntax error")

	// ErrUnknownName indicates a free of a name that was never allocated.
	ErrUnknownName = errors.New("trace: unknown allocation name")

	// ErrBadAddress indicates pointer arithmetic outside the 32-bit address range.
	ErrBadAddress = errors.New("trace: address out of range")
)

// ParseFile reads and parses the script at path.
func ParseFile(path string) ([]Op, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open script")
	}
	defer f.Close()

	ops, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return ops, nil
}

// Parse reads a script from r.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		op, err := parseLine(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		op.Line = line
		ops = append(ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read script")
	}
	return ops, nil
}

func parseLine(fields []string) (Op, error) {
	switch fields[0] {
	case "alloc":
		if len(fields) != 3 {
			return Op{}, errors.Wrap(ErrSyntax, "usage: alloc NAME SIZE")
		}
		if !validName(fields[1]) {
			return Op{}, errors.Wrapf(ErrSyntax, "bad name %q", fields[1])
		}
		size, err := strconv.ParseUint(fields[2], 0, 32)
		if err != nil {
			return Op{}, errors.Wrapf(ErrSyntax, "bad size %q", fields[2])
		}
		return Op{Kind: OpAlloc, Name: fields[1], Size: uint32(size)}, nil

	case "free":
		if len(fields) != 2 {
			return Op{}, errors.Wrap(ErrSyntax, "usage: free NAME[+-OFF] | free @ADDR")
		}
		return parseFree(fields[1])

	case "grow":
		if len(fields) != 2 {
			return Op{}, errors.Wrap(ErrSyntax, "usage: grow PAGES")
		}
		pages, err := strconv.Atoi(fields[1])
		if err != nil || pages <= 0 {
			return Op{}, errors.Wrapf(ErrSyntax, "bad page count %q", fields[1])
		}
		return Op{Kind: OpGrow, Pages: pages}, nil
	}
	return Op{}, errors.Wrapf(ErrSyntax, "unknown operation %q", fields[0])
}

func parseFree(arg string) (Op, error) {
	if addr, ok := strings.CutPrefix(arg, "@"); ok {
		v, err := strconv.ParseUint(addr, 0, 32)
		if err != nil {
			return Op{}, errors.Wrapf(ErrSyntax, "bad address %q", arg)
		}
		return Op{Kind: OpFree, Raw: true, Addr: heap.Ptr(v)}, nil
	}

	name, off := arg, ""
	if i := strings.IndexAny(arg, "+-"); i >= 0 {
		name, off = arg[:i], arg[i:]
	}
	if !validName(name) {
		return Op{}, errors.Wrapf(ErrSyntax, "bad name %q", name)
	}
	op := Op{Kind: OpFree, Name: name}
	if off != "" {
		v, err := strconv.ParseInt(off, 0, 64)
		if err != nil {
			return Op{}, errors.Wrapf(ErrSyntax, "bad offset %q", off)
		}
		op.Offset = v
	}
	return op, nil
}

// validName accepts identifiers: a letter or underscore, then letters,
// digits, or underscores.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
