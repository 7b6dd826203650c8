package caps

// Trap frame layout, fixed by the trap entry/exit assembly. The frame is a
// flat array of 8-byte words: general-purpose register slots at words 0-31,
// floating-point register slots at words 32-63, the saved trap-handler
// stack pointer at word 64 and the saved program counter at word 65. This
// core consumes the layout; it does not own it.
const (
	// TrapFrameGPRs is the number of general-purpose register slots.
	TrapFrameGPRs = 32

	trapFrameFPRBase = 32

	// TrapFrameSPWord is the word index of the saved stack pointer.
	TrapFrameSPWord = 64
	// TrapFramePCWord is the word index of the saved program counter.
	TrapFramePCWord = 65
	// TrapFrameWords is the total size of the frame in words.
	TrapFrameWords = 66

	// TrapFrameBytes is the total size of the frame in bytes.
	TrapFrameBytes = TrapFrameWords * 8
)

// RISC-V integer register indices with an ABI meaning for the syscall path.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA3   = 13
	RegA4   = 14
	RegA5   = 15
	RegA6   = 16
	RegA7   = 17
)

// SyscallArgWords is the number of argument registers (a0-a7).
const SyscallArgWords = 8

// TrapFrame is the register state saved for a task when it traps into the
// kernel. Syscall arguments arrive in a0-a7 and the result is written back
// into a0 before the frame is restored.
type TrapFrame struct {
	words [TrapFrameWords]uint64
}

// Reg returns general-purpose register i.
func (tf *TrapFrame) Reg(i int) uint64 {
	if i < 0 || i >= TrapFrameGPRs {
		panic("caps: trap frame register index out of range")
	}
	return tf.words[i]
}

// SetReg writes general-purpose register i. Writes to x0 are discarded,
// mirroring the hardwired zero register.
func (tf *TrapFrame) SetReg(i int, v uint64) {
	if i < 0 || i >= TrapFrameGPRs {
		panic("caps: trap frame register index out of range")
	}
	if i == RegZero {
		return
	}
	tf.words[i] = v
}

// FReg returns floating-point register i.
func (tf *TrapFrame) FReg(i int) uint64 {
	if i < 0 || i >= TrapFrameGPRs {
		panic("caps: trap frame register index out of range")
	}
	return tf.words[trapFrameFPRBase+i]
}

// SetFReg writes floating-point register i.
func (tf *TrapFrame) SetFReg(i int, v uint64) {
	if i < 0 || i >= TrapFrameGPRs {
		panic("caps: trap frame register index out of range")
	}
	tf.words[trapFrameFPRBase+i] = v
}

// SP returns the saved trap-handler stack pointer.
func (tf *TrapFrame) SP() uint64 { return tf.words[TrapFrameSPWord] }

// SetSP writes the saved trap-handler stack pointer.
func (tf *TrapFrame) SetSP(v uint64) { tf.words[TrapFrameSPWord] = v }

// PC returns the saved program counter.
func (tf *TrapFrame) PC() uint64 { return tf.words[TrapFramePCWord] }

// SetPC writes the saved program counter.
func (tf *TrapFrame) SetPC(v uint64) { tf.words[TrapFramePCWord] = v }

// SyscallArgs returns the syscall argument registers a0-a7 as decoded by
// the dispatcher.
func (tf *TrapFrame) SyscallArgs() [SyscallArgWords]uint64 {
	var args [SyscallArgWords]uint64
	copy(args[:], tf.words[RegA0:RegA0+SyscallArgWords])
	return args
}

// SetSyscallResult writes the syscall result into a0.
func (tf *TrapFrame) SetSyscallResult(v uint64) {
	tf.words[RegA0] = v
}
