package caps

// IrqLines is the number of external interrupt lines the platform's
// interrupt controller exposes.
const IrqLines = 1024

// IrqControl is the root authority over external interrupt lines. Claiming
// a line produces an Irq capability; a line can be claimed at most once at
// a time.
type IrqControl struct {
	claimed [IrqLines / 64]uint64
}

// NewIrqControl creates an IrqControl with no lines claimed.
func NewIrqControl() *IrqControl {
	return &IrqControl{}
}

// Tag identifies the object kind.
func (ic *IrqControl) Tag() Tag { return TagIrqControl }

// Claim marks a line as taken. Returns ErrBadIrqLine for a line outside
// the controller's range and ErrSlotOccupied for an already-claimed line.
func (ic *IrqControl) Claim(line uint32) error {
	if line >= IrqLines {
		return ErrBadIrqLine
	}
	if ic.IsClaimed(line) {
		return ErrSlotOccupied
	}
	ic.claimed[line/64] |= 1 << (line % 64)
	return nil
}

// IsClaimed reports whether the line is currently claimed.
func (ic *IrqControl) IsClaimed(line uint32) bool {
	if line >= IrqLines {
		return false
	}
	return ic.claimed[line/64]&(1<<(line%64)) != 0
}

// release returns a line to the unclaimed pool.
func (ic *IrqControl) release(line uint32) {
	ic.claimed[line/64] &^= 1 << (line % 64)
}

// teardown releases every claimed line. Irq capabilities derived from this
// control are already gone by the time this runs.
func (ic *IrqControl) teardown() error {
	clear(ic.claimed[:])
	return nil
}

// Irq is a capability over one claimed interrupt line, optionally bound to
// a Notification that gets signalled when the line fires.
type Irq struct {
	control      *IrqControl
	line         uint32
	notification *Notification
}

// Tag identifies the object kind.
func (i *Irq) Tag() Tag { return TagIrq }

// Line returns the claimed interrupt line.
func (i *Irq) Line() uint32 { return i.line }

// Bind attaches the notification that Trigger signals.
func (i *Irq) Bind(n *Notification) {
	i.notification = n
}

// Trigger signals the bound notification as the interrupt handler would.
func (i *Irq) Trigger() {
	if i.notification != nil {
		i.notification.Signal(1 << (i.line % 64))
	}
}

// teardown unbinds the notification and releases the claimed line back to
// the owning controller. The controller outlives the Irq because teardown
// runs descendants-first.
func (i *Irq) teardown() error {
	i.notification = nil
	i.control.release(i.line)
	return nil
}
