package caps

import "github.com/halcyonos/capkit/mem"

// TaskState is the scheduling state of a task. Scheduling policy itself is
// out of scope; the capability core only flips states when IPC objects
// block, wake or die.
type TaskState uint8

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskBlocked
	TaskExited
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	case TaskExited:
		return "exited"
	default:
		return "unknown"
	}
}

// StatusCancelled is the syscall status written into a0 when a task is
// woken because the object it was blocked on got destroyed.
const StatusCancelled = ^uint64(0)

// Task is a kernel object representing one schedulable subject: its saved
// register frame plus the CSpace and AddressSpace it executes under.
type Task struct {
	tid     uint32
	state   TaskState
	frame   TrapFrame
	backing mem.Region

	cspace *CSpace
	vspace *AddressSpace

	// waiters are tasks blocked until this task exits.
	waiters []*Task
}

// NewTask creates a task in the ready state. backing is the storage charge
// for the saved frame.
func NewTask(tid uint32, backing mem.Region) *Task {
	return &Task{tid: tid, backing: backing}
}

// Tag identifies the object kind.
func (t *Task) Tag() Tag { return TagTask }

// TID returns the task identifier.
func (t *Task) TID() uint32 { return t.tid }

// State returns the current scheduling state.
func (t *Task) State() TaskState { return t.state }

// Frame returns the task's saved trap frame.
func (t *Task) Frame() *TrapFrame { return &t.frame }

// AssignCSpace points the task at the capability table it resolves CAddrs
// through.
func (t *Task) AssignCSpace(cs *CSpace) { t.cspace = cs }

// AssignAddressSpace points the task at the address space it executes in.
func (t *Task) AssignAddressSpace(as *AddressSpace) { t.vspace = as }

// CSpace returns the task's capability table, or nil.
func (t *Task) CSpace() *CSpace { return t.cspace }

// AddressSpace returns the task's address space, or nil.
func (t *Task) AddressSpace() *AddressSpace { return t.vspace }

// AwaitExit blocks w until this task exits. If the task has already
// exited, w is not blocked.
func (t *Task) AwaitExit(w *Task) {
	if t.state == TaskExited {
		return
	}
	w.block()
	t.waiters = append(t.waiters, w)
}

// block parks the task until an IPC object wakes it.
func (t *Task) block() {
	if t.state != TaskExited {
		t.state = TaskBlocked
	}
}

// wake readies a blocked task, delivering status through a0.
func (t *Task) wake(status uint64) {
	if t.state != TaskBlocked {
		return
	}
	t.state = TaskReady
	t.frame.SetSyscallResult(status)
}

// teardown marks the task exited, wakes everyone waiting for it and drops
// the CSpace/AddressSpace references. The referenced objects are destroyed
// by their own capabilities, not here.
func (t *Task) teardown() error {
	t.state = TaskExited
	for _, w := range t.waiters {
		w.wake(StatusCancelled)
	}
	t.waiters = nil
	t.cspace = nil
	t.vspace = nil
	return nil
}
