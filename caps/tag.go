package caps

// Tag identifies the kind of a kernel object. The set is closed and known
// at build time; teardown behavior dispatches on the concrete variant, not
// on an open registry.
type Tag uint8

const (
	TagUninit Tag = iota
	TagMemory
	TagPageTable
	TagAddressSpace
	TagCSpace
	TagEndpoint
	TagNotification
	TagIrqControl
	TagIrq
	TagDeviceMemory
	TagTask
)

func (t Tag) String() string {
	switch t {
	case TagUninit:
		return "uninit"
	case TagMemory:
		return "memory"
	case TagPageTable:
		return "pagetable"
	case TagAddressSpace:
		return "addrspace"
	case TagCSpace:
		return "cspace"
	case TagEndpoint:
		return "endpoint"
	case TagNotification:
		return "notification"
	case TagIrqControl:
		return "irqcontrol"
	case TagIrq:
		return "irq"
	case TagDeviceMemory:
		return "devmem"
	case TagTask:
		return "task"
	default:
		return "unknown"
	}
}
