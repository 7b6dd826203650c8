//go:build linux || darwin

package mem

import "golang.org/x/sys/unix"

// mapBacking reserves the physical range as an anonymous private mapping so
// that untouched pages cost nothing until first use.
func mapBacking(size int) ([]byte, func() error, error) {
	data, err := unix.Mmap(
		-1,
		0,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
