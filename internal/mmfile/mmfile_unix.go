//go:build unix

package mmfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Open maps the file at path read-only. An empty file yields an empty
// mapping without calling mmap, which rejects zero lengths.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // the mapping outlives the descriptor

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	switch {
	case size == 0:
		return &Mapping{Data: []byte{}}, nil
	case size > int64(^uint(0)>>1):
		return nil, fmt.Errorf("mmfile: %s is too large to map (%d bytes)", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmfile: map %s: %w", path, err)
	}
	return &Mapping{Data: data, release: func() error { return unix.Munmap(data) }}, nil
}
