//go:build unix

package hasher

import (
	"os"

	"golang.org/x/sys/unix"
)

// readMmap reads a file's full contents via a read-only mmap, copying
// the mapped bytes out before unmapping so the digest can keep using
// them after this call returns.
func readMmap(f *os.File, size int64) ([]byte, error) {
	mapped, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	defer unix.Munmap(mapped)

	content := make([]byte, len(mapped))
	copy(content, mapped)
	return content, nil
}
