//go:build !unix

package window

import (
	"fmt"
	"io"
	"os"
)

// Open reads path fully into memory and returns a Window over it. Used on
// platforms without a POSIX mmap binding; the mmap path in window_unix.go
// is the primary, tested implementation.
func Open(path string) (*Window, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("window: opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("window: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("window: %s is empty", path)
	}

	return &Window{data: data}, nil
}
