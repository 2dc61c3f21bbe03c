//go:build unix

package window

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Open memory-maps path read-only and returns a Window over its full
// contents. The mapping is released by Window.Close.
func Open(path string) (*Window, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("window: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("window: stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("window: %s is empty", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("window: mmap %s: %w", path, err)
	}

	w := &Window{data: data}
	w.closer = func() error {
		return unix.Munmap(data)
	}
	return w, nil
}
