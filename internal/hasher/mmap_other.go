//go:build !unix

package hasher

import (
	"io"
	"os"
)

// readMmap falls back to a plain read on platforms without the unix mmap
// syscalls (Windows); the caller already streams on error, so this just
// buffers the whole file instead.
func readMmap(f *os.File, size int64) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
