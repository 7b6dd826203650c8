package caps

// Notification is an asynchronous signal word. Signals accumulate in a
// bitmask until a waiter collects them; at most one task waits at a time.
type Notification struct {
	pending uint64
	waiter  *Task
}

// NewNotification creates an empty notification.
func NewNotification() *Notification {
	return &Notification{}
}

// Tag identifies the object kind.
func (n *Notification) Tag() Tag { return TagNotification }

// Signal posts bits to the notification, waking the waiter if one is
// parked.
func (n *Notification) Signal(bits uint64) {
	n.pending |= bits
	if n.waiter != nil {
		w := n.waiter
		n.waiter = nil
		w.wake(n.pending)
		n.pending = 0
	}
}

// Poll returns and clears the pending signal bits without blocking.
func (n *Notification) Poll() uint64 {
	bits := n.pending
	n.pending = 0
	return bits
}

// Wait delivers pending signals to t immediately, or parks t until the
// next Signal.
func (n *Notification) Wait(t *Task) {
	if n.pending != 0 {
		t.frame.SetSyscallResult(n.pending)
		n.pending = 0
		return
	}
	t.block()
	n.waiter = t
}

// teardown wakes the parked waiter, if any, with a cancelled status.
func (n *Notification) teardown() error {
	if n.waiter != nil {
		n.waiter.wake(StatusCancelled)
		n.waiter = nil
	}
	n.pending = 0
	return nil
}
