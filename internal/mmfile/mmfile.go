// Package mmfile maps heap images into memory read-only.
package mmfile

// Mapping is a read-only view of a file. Data is invalid after Close.
type Mapping struct {
	Data    []byte
	release func() error
	closed  bool
}

// Close releases the view. Calling it more than once is a no-op.
func (m *Mapping) Close() error {
	if m.closed || m.release == nil {
		return nil
	}
	m.closed = true
	m.Data = nil
	return m.release()
}

// Len returns the number of mapped bytes.
func (m *Mapping) Len() int { return len(m.Data) }
