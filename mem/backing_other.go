//go:build !linux && !darwin

package mem

// mapBacking falls back to heap storage on platforms without anonymous
// mmap support.
func mapBacking(size int) ([]byte, func() error, error) {
	data := make([]byte, size)
	return data, func() error { return nil }, nil
}
