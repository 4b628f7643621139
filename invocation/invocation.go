// Copyright 2021 The ProbeChain Authors
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

// Package invocation implements Ψ_M: the generic "run a service program
// with a byte-blob argument and a host-call dispatcher" protocol that the
// accumulate, refine, and is-authorized invocations build on. It owns
// prologue memory layout, the host-call trap/resume loop, and epilogue
// blob extraction; it knows nothing about service accounts or accumulate
// semantics — those live in package accumulate.
package invocation

import (
	"github.com/probechain/pvm/params"
	"github.com/probechain/pvm/pvm"
	"github.com/probechain/pvm/pvmlog"
)

// Dispatcher is F in Ψ_M's signature: invoked with the host-call id
// (the value the ECALLI immediate placed in r0), the live gas counter, the
// register file, memory, and an opaque context. It may mutate gas/regs/mem
// and the context arbitrarily. Returning resume=true means "continue the
// interpreter"; resume=false terminates Ψ_M immediately with the returned
// code (only PANIC or OOG are meaningful terminal overrides — HOST dispatch
// normally resumes).
type Dispatcher func(hostCall uint64, gas *int64, reg *pvm.Registers, mem *pvm.Memory, ctx interface{}) (resume bool, code pvm.ResultCode)

// Result is what Ψ_M hands back to its caller: HALT carries the extracted
// return blob, PANIC/OOG carry none. FAULT never escapes Ψ_M — it is
// translated to PANIC, with FaultAddr preserved for diagnostics only (not
// part of the consensus-visible result).
type Result struct {
	Code      pvm.ResultCode
	Halt      []byte
	FaultAddr uint64
}

// argZoneBase is the fixed high address Ψ_M's prologue places the
// argument blob at. Placing it InitZoneSize bytes below the top of the
// address space keeps it clear of any heap grown from ReservedMemoryStart
// upward (SBRK itself is capped well below this by params.MaxHeapAddress).
const argZoneBase = uint64(params.AddressSpaceSize) - uint64(params.InitZoneSize)

// Trace, when non-nil, is installed on every VM Invoke creates, firing
// before each executed instruction. Debug aid only; it must not mutate
// machine state.
var Trace func(pc uint32, op pvm.Opcode)

// Invoke runs Ψ_M(code, initPC, gas, args, dispatch, ctx) → (gasConsumed,
// Result, ctx). code is the raw, undecoded service code blob; Invoke
// performs the structural decode itself. A blob that does not decode never
// enters the interpreter: it comes back as an ordinary PANIC result with
// zero gas consumed, not as a separate load error.
func Invoke(code []byte, initPC uint32, gas int64, args []byte, dispatch Dispatcher, ctx interface{}) (int64, Result, interface{}) {
	prog, err := pvm.Decode(code)
	if err != nil {
		// A load-time decode failure is reported as an immediate PANIC with
		// zero gas spent; callers (accumulate included) cannot tell it
		// apart from any other PANIC result.
		return 0, Result{Code: pvm.ResultPanic}, ctx
	}

	mem := pvm.NewMemory()
	mem.MapRange(argZoneBase, uint64(params.InitZoneSize), pvm.AccessReadWrite)
	if len(args) > 0 {
		_ = mem.Write(argZoneBase, args)
	}

	vm, err := pvm.NewVM(prog, mem, initPC, gas)
	if err != nil {
		return 0, Result{Code: pvm.ResultPanic}, ctx
	}
	vm.Reg.Set(0, argZoneBase)
	vm.Reg.Set(1, uint64(len(args)))
	vm.Trace = Trace

	for {
		res := vm.Run()
		switch res {
		case pvm.ResultHost:
			resume, override := dispatch(vm.HostCall, &vm.Gas, &vm.Reg, vm.Mem, ctx)
			if !resume {
				return gas - vm.Gas, Result{Code: override}, ctx
			}
			// Run() already advanced PC past the ECALLI before returning
			// HOST, so calling it again clears the non-terminal HOST
			// result and resumes decoding from the following instruction.
			continue

		case pvm.ResultFault:
			pvmlog.Debug("pvm: fault translated to panic", "addr", vm.FaultAddr)
			return gas - vm.Gas, Result{Code: pvm.ResultPanic, FaultAddr: vm.FaultAddr}, ctx

		case pvm.ResultHalt:
			blob, rerr := mem.Read(vm.Reg.Get(0), vm.Reg.Get(1))
			if rerr != nil {
				// The program claimed an output range it can't actually
				// read from; that is itself a PANIC.
				return gas - vm.Gas, Result{Code: pvm.ResultPanic}, ctx
			}
			return gas - vm.Gas, Result{Code: pvm.ResultHalt, Halt: blob}, ctx

		case pvm.ResultPanic, pvm.ResultOOG:
			return gas - vm.Gas, Result{Code: res}, ctx

		default:
			// Unreachable: VM.Run never returns resultNone.
			return gas - vm.Gas, Result{Code: pvm.ResultPanic}, ctx
		}
	}
}
