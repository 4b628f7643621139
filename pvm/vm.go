// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package pvm

// VM is one instance of the interpreter Ψ: a register file, a paged
// address space, the decoded program, and the state needed to suspend on
// a host call and resume later with the same gas meter.
type VM struct {
	Reg  Registers
	Mem  *Memory
	Prog *Program

	PC  uint32
	Gas int64

	Result    ResultCode
	FaultAddr uint64
	// HostCall is the ECALLI immediate identifying which host function to
	// invoke, valid only while Result == ResultHost.
	HostCall uint64

	// Trace, when non-nil, is called before each executed instruction.
	// Debug aid only; left nil in consensus paths.
	Trace func(pc uint32, op Opcode)
}

// NewVM constructs a VM ready to execute prog starting at initPC. An
// initPC that is not a valid basic-block entry point is rejected up front
// rather than deferred to the first Run() call; it is invalid for the
// same reason any other non-entry jump target is.
func NewVM(prog *Program, mem *Memory, initPC uint32, gas int64) (*VM, error) {
	if !prog.EntryAt(initPC) {
		return nil, ErrMalformedBlob
	}
	return &VM{Prog: prog, Mem: mem, PC: initPC, Gas: gas, Result: resultNone}, nil
}

func (vm *VM) terminal() bool {
	switch vm.Result {
	case ResultHalt, ResultPanic, ResultFault, ResultOOG:
		return true
	default:
		return false
	}
}

// Run drives the fetch-decode-charge-execute loop until a terminal result
// (HALT, PANIC, FAULT, OOG) or a host call (HOST) is reached. Calling Run
// again after a HOST result resumes execution from the instruction after
// the ECALLI that suspended it — the caller is expected to have serviced
// the host call and updated registers/memory in between. Calling Run
// again after a terminal result just returns that result again.
func (vm *VM) Run() ResultCode {
	if vm.terminal() {
		return vm.Result
	}
	resuming := vm.Result == ResultHost
	vm.Result = resultNone

	for {
		if int(vm.PC) >= len(vm.Prog.Code) {
			// Falling off the end of the instruction stream is a normal,
			// successful termination — not every program needs an explicit
			// TRAP to stop.
			vm.Result = ResultHalt
			return vm.Result
		}

		if vm.Gas <= 0 {
			vm.Result = ResultOOG
			return vm.Result
		}

		if resuming {
			// A resumption point is held to the same rule as a jump
			// target: the byte after the suspending ECALLI must carry an
			// entry bit.
			resuming = false
			if !vm.Prog.EntryAt(vm.PC) {
				vm.Result = ResultPanic
				return vm.Result
			}
		}

		d := decodeAt(vm.Prog.Code, vm.PC)
		// Every fetch charges one unit of gas, even one that turns out to
		// be malformed or unknown: gas accounting must be deterministic
		// independent of what the bytes happen to mean.
		vm.Gas--

		if d.malformed {
			vm.Result = ResultPanic
			return vm.Result
		}

		if vm.Trace != nil {
			vm.Trace(vm.PC, d.op)
		}

		switch d.op {
		case OpTrap:
			vm.Result = ResultPanic
			return vm.Result

		case OpFallthrough:
			vm.PC += uint32(d.length)

		case OpEcalli:
			vm.HostCall = d.imm[0]
			vm.Reg.Set(0, d.imm[0])
			vm.PC += uint32(d.length)
			vm.Result = ResultHost
			return vm.Result

		case OpSbrk:
			prior := vm.Mem.Sbrk(vm.Reg.Get(d.regs[1]))
			vm.Reg.Set(d.regs[0], prior)
			vm.PC += uint32(d.length)

		case OpJump:
			if !vm.jumpTo(uint32(d.imm[0])) {
				return vm.Result
			}

		case OpJumpInd:
			if !vm.jumpIndirect(vm.Reg.Get(d.regs[0]) + d.imm[0]) {
				return vm.Result
			}

		case OpLoadImmJump:
			vm.Reg.Set(d.regs[0], d.imm[0])
			if !vm.jumpTo(uint32(d.imm[1])) {
				return vm.Result
			}

		case OpLoadImmJumpInd:
			vm.Reg.Set(d.regs[0], d.imm[0])
			if !vm.jumpIndirect(vm.Reg.Get(d.regs[1]) + d.imm[1]) {
				return vm.Result
			}

		case OpBranchEq, OpBranchNe, OpBranchLtU, OpBranchLtS, OpBranchLeU, OpBranchLeS,
			OpBranchGeU, OpBranchGeS, OpBranchGtU, OpBranchGtS,
			OpBranchEqImm, OpBranchNeImm, OpBranchLtUImm, OpBranchLtSImm, OpBranchLeUImm,
			OpBranchLeSImm, OpBranchGeUImm, OpBranchGeSImm, OpBranchGtUImm, OpBranchGtSImm:
			if vm.branchTaken(d) {
				if !vm.jumpTo(uint32(int64(vm.PC) + int64(d.offset))) {
					return vm.Result
				}
			} else {
				vm.PC += uint32(d.length)
			}

		default:
			if !vm.execOrdinary(d) {
				return vm.Result
			}
			vm.PC += uint32(d.length)
		}
	}
}

// jumpTo validates target against the basic-block entry bitmask and, if
// valid, sets PC to it. On failure it sets Result to PANIC and returns
// false so the caller can simply `return vm.Result`.
func (vm *VM) jumpTo(target uint32) bool {
	if !vm.Prog.EntryAt(target) {
		vm.Result = ResultPanic
		return false
	}
	vm.PC = target
	return true
}

// jumpIndirect resolves a dynamic jump table index and validates the
// resulting target the same way jumpTo does.
func (vm *VM) jumpIndirect(index uint64) bool {
	target, ok := vm.Prog.JumpTarget(index)
	if !ok {
		vm.Result = ResultPanic
		return false
	}
	return vm.jumpTo(target)
}

// fault records a memory access violation as the interpreter's terminal
// result.
func (vm *VM) fault(addr uint64) {
	vm.Result = ResultFault
	vm.FaultAddr = addr
}

func asFault(err error) (uint64, bool) {
	fe, ok := err.(*FaultError)
	if !ok {
		return 0, false
	}
	return fe.Addr, true
}
