// Package writer exposes sinks for heap images.
//
// A heap image is the raw bytes of an address space: every page, headers and
// payloads alike, exactly as the allocator left them.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink receives a complete heap image.
type Sink interface {
	WriteImage(buf []byte) error
}

// FileWriter writes heap images to a filesystem path atomically.
type FileWriter struct {
	Path string
}

// WriteImage writes buf to the configured path atomically via temp file + rename.
func (w *FileWriter) WriteImage(buf []byte) error {
	// Create temp file in same directory to ensure atomic rename
	tmpFile, err := os.CreateTemp(filepath.Dir(w.Path), ".heapkit-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, writeErr := tmpFile.Write(buf); writeErr != nil {
		return fmt.Errorf("write temp file: %w", writeErr)
	}
	if syncErr := tmpFile.Sync(); syncErr != nil {
		return fmt.Errorf("sync temp file: %w", syncErr)
	}
	if closeErr := tmpFile.Close(); closeErr != nil {
		return fmt.Errorf("close temp file: %w", closeErr)
	}
	tmpFile = nil

	if renameErr := os.Rename(tmpPath, w.Path); renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", renameErr)
	}
	return nil
}

// MemWriter captures heap images in memory.
type MemWriter struct {
	Buf []byte
}

// WriteImage copies buf, so the image survives later writes to the space.
func (w *MemWriter) WriteImage(buf []byte) error {
	w.Buf = append(w.Buf[:0], buf...)
	return nil
}

var (
	_ Sink = (*FileWriter)(nil)
	_ Sink = (*MemWriter)(nil)
)
