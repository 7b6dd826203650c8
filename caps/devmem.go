package caps

import "github.com/halcyonos/capkit/mem"

// DeviceMemory references an MMIO window outside the normal RAM range,
// such as a UART or the interrupt controller's register block. It carries
// no allocator; the window belongs to the device.
type DeviceMemory struct {
	base   mem.PAddr
	size   uint64
	mapped bool
}

// NewDeviceMemory creates a DeviceMemory object over the given window.
func NewDeviceMemory(base mem.PAddr, size uint64) *DeviceMemory {
	return &DeviceMemory{base: base, size: size}
}

// Tag identifies the object kind.
func (d *DeviceMemory) Tag() Tag { return TagDeviceMemory }

// Base returns the physical address of the window.
func (d *DeviceMemory) Base() mem.PAddr { return d.base }

// Size returns the window size in bytes.
func (d *DeviceMemory) Size() uint64 { return d.size }

// Map marks the window as mapped into an address space.
func (d *DeviceMemory) Map() error {
	if d.mapped {
		return ErrAlreadyMapped
	}
	d.mapped = true
	return nil
}

// Unmap marks the window as no longer mapped.
func (d *DeviceMemory) Unmap() {
	d.mapped = false
}

// IsMapped reports whether the window is currently mapped.
func (d *DeviceMemory) IsMapped() bool { return d.mapped }

// teardown drops the mapping mark so the device window can be handed out
// again by a fresh capability.
func (d *DeviceMemory) teardown() error {
	d.mapped = false
	return nil
}
