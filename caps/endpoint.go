package caps

// Endpoint is a synchronous IPC rendezvous point. Tasks block on it in
// sender or receiver role until a partner arrives; the message transfer
// itself happens in the (out-of-scope) syscall layer.
type Endpoint struct {
	senders   []*Task
	receivers []*Task
}

// NewEndpoint creates an empty endpoint.
func NewEndpoint() *Endpoint {
	return &Endpoint{}
}

// Tag identifies the object kind.
func (e *Endpoint) Tag() Tag { return TagEndpoint }

// BlockSender parks t until a receiver arrives.
func (e *Endpoint) BlockSender(t *Task) {
	t.block()
	e.senders = append(e.senders, t)
}

// BlockReceiver parks t until a sender arrives.
func (e *Endpoint) BlockReceiver(t *Task) {
	t.block()
	e.receivers = append(e.receivers, t)
}

// Rendezvous pops the oldest blocked sender/receiver pair and readies
// both. It returns false while either queue is empty.
func (e *Endpoint) Rendezvous() (sender, receiver *Task, ok bool) {
	if len(e.senders) == 0 || len(e.receivers) == 0 {
		return nil, nil, false
	}
	sender, e.senders = e.senders[0], e.senders[1:]
	receiver, e.receivers = e.receivers[0], e.receivers[1:]
	sender.wake(0)
	receiver.wake(0)
	return sender, receiver, true
}

// Waiting returns the number of blocked senders and receivers.
func (e *Endpoint) Waiting() (senders, receivers int) {
	return len(e.senders), len(e.receivers)
}

// teardown wakes every blocked sender and receiver with a cancelled
// status; their send/receive syscalls fail instead of hanging on a dead
// endpoint.
func (e *Endpoint) teardown() error {
	for _, t := range e.senders {
		t.wake(StatusCancelled)
	}
	for _, t := range e.receivers {
		t.wake(StatusCancelled)
	}
	e.senders, e.receivers = nil, nil
	return nil
}
