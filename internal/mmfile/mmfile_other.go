//go:build !unix

package mmfile

import "os"

// Open reads the whole file where mmap is not available.
func Open(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Mapping{Data: data}, nil
}
