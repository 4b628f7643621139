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

import "github.com/probechain/pvm/params"

// execOrdinary executes every instruction whose control flow is simple
// fallthrough: the 3-register arithmetic/bitwise family, the 2-register
// unary family, LOAD_IMM, and the memory load/store families. Run() advances
// PC by d.length itself after this returns true; it returns false (having
// set vm.Result) when a memory access fails, or with PANIC when d.op is not
// one of the opcodes it handles.
func (vm *VM) execOrdinary(d decoded) bool {
	rD, rA, rB := d.regs[0], d.regs[1], d.regs[2]

	switch d.op {
	// ---- 3-register arithmetic/bitwise ----
	case OpAdd32:
		vm.Reg.Set32(rD, vm.Reg.Get32(rA)+vm.Reg.Get32(rB))
	case OpAdd64:
		vm.Reg.Set(rD, vm.Reg.Get(rA)+vm.Reg.Get(rB))
	case OpSub32:
		vm.Reg.Set32(rD, vm.Reg.Get32(rA)-vm.Reg.Get32(rB))
	case OpSub64:
		vm.Reg.Set(rD, vm.Reg.Get(rA)-vm.Reg.Get(rB))
	case OpMul32:
		vm.Reg.Set32(rD, vm.Reg.Get32(rA)*vm.Reg.Get32(rB))
	case OpMul64:
		vm.Reg.Set(rD, vm.Reg.Get(rA)*vm.Reg.Get(rB))
	case OpDivU32:
		vm.Reg.Set32(rD, divU32(vm.Reg.Get32(rA), vm.Reg.Get32(rB)))
	case OpDivU64:
		vm.Reg.Set(rD, divU64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpDivS32:
		vm.Reg.Set32(rD, uint32(divS32(int32(vm.Reg.Get32(rA)), int32(vm.Reg.Get32(rB)))))
	case OpDivS64:
		vm.Reg.Set(rD, uint64(divS64(int64(vm.Reg.Get(rA)), int64(vm.Reg.Get(rB)))))
	case OpRemU32:
		vm.Reg.Set32(rD, remU32(vm.Reg.Get32(rA), vm.Reg.Get32(rB)))
	case OpRemU64:
		vm.Reg.Set(rD, remU64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpRemS32:
		vm.Reg.Set32(rD, uint32(remS32(int32(vm.Reg.Get32(rA)), int32(vm.Reg.Get32(rB)))))
	case OpRemS64:
		vm.Reg.Set(rD, uint64(remS64(int64(vm.Reg.Get(rA)), int64(vm.Reg.Get(rB)))))
	case OpShloL32:
		vm.Reg.Set32(rD, shloL32(vm.Reg.Get32(rA), vm.Reg.Get32(rB)))
	case OpShloL64:
		vm.Reg.Set(rD, shloL64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpShloR32:
		vm.Reg.Set32(rD, shloR32(vm.Reg.Get32(rA), vm.Reg.Get32(rB)))
	case OpShloR64:
		vm.Reg.Set(rD, shloR64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpSharR32:
		vm.Reg.Set32(rD, uint32(sharR32(int32(vm.Reg.Get32(rA)), vm.Reg.Get32(rB))))
	case OpSharR64:
		vm.Reg.Set(rD, uint64(sharR64(int64(vm.Reg.Get(rA)), vm.Reg.Get(rB))))
	case OpRotL32:
		vm.Reg.Set32(rD, rotL32(vm.Reg.Get32(rA), vm.Reg.Get32(rB)))
	case OpRotL64:
		vm.Reg.Set(rD, rotL64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpRotR32:
		vm.Reg.Set32(rD, rotR32(vm.Reg.Get32(rA), vm.Reg.Get32(rB)))
	case OpRotR64:
		vm.Reg.Set(rD, rotR64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpMulUpperSS64:
		vm.Reg.Set(rD, uint64(mulUpperSS64(int64(vm.Reg.Get(rA)), int64(vm.Reg.Get(rB)))))
	case OpMulUpperUU64:
		vm.Reg.Set(rD, mulUpperUU64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpMulUpperSU64:
		vm.Reg.Set(rD, uint64(mulUpperSU64(int64(vm.Reg.Get(rA)), vm.Reg.Get(rB))))
	case OpSetLtU:
		vm.Reg.Set(rD, setLtU64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpSetLtS:
		vm.Reg.Set(rD, setLtS64(int64(vm.Reg.Get(rA)), int64(vm.Reg.Get(rB))))
	case OpCmovIZ:
		if vm.Reg.Get(rB) == 0 {
			vm.Reg.Set(rD, vm.Reg.Get(rA))
		}
	case OpCmovNZ:
		if vm.Reg.Get(rB) != 0 {
			vm.Reg.Set(rD, vm.Reg.Get(rA))
		}
	case OpMaxS:
		vm.Reg.Set(rD, uint64(maxS64(int64(vm.Reg.Get(rA)), int64(vm.Reg.Get(rB)))))
	case OpMaxU:
		vm.Reg.Set(rD, maxU64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpMinS:
		vm.Reg.Set(rD, uint64(minS64(int64(vm.Reg.Get(rA)), int64(vm.Reg.Get(rB)))))
	case OpMinU:
		vm.Reg.Set(rD, minU64(vm.Reg.Get(rA), vm.Reg.Get(rB)))
	case OpAnd:
		vm.Reg.Set(rD, vm.Reg.Get(rA)&vm.Reg.Get(rB))
	case OpOr:
		vm.Reg.Set(rD, vm.Reg.Get(rA)|vm.Reg.Get(rB))
	case OpXor:
		vm.Reg.Set(rD, vm.Reg.Get(rA)^vm.Reg.Get(rB))
	case OpAndInv:
		vm.Reg.Set(rD, vm.Reg.Get(rA)&^vm.Reg.Get(rB))
	case OpOrInv:
		vm.Reg.Set(rD, vm.Reg.Get(rA)|(^vm.Reg.Get(rB)))
	case OpXnor:
		vm.Reg.Set(rD, ^(vm.Reg.Get(rA) ^ vm.Reg.Get(rB)))

	// ---- 2-register unary ----
	case OpSignExtend8:
		vm.Reg.Set(rD, signExtend8(vm.Reg.Get(rA)))
	case OpSignExtend16:
		vm.Reg.Set(rD, signExtend16(vm.Reg.Get(rA)))
	case OpZeroExtend16:
		vm.Reg.Set(rD, zeroExtend16(vm.Reg.Get(rA)))
	case OpReverseBytes:
		vm.Reg.Set(rD, reverseBytes64(vm.Reg.Get(rA)))
	case OpCountSetBits32:
		vm.Reg.Set(rD, countSetBits32(vm.Reg.Get32(rA)))
	case OpCountSetBits64:
		vm.Reg.Set(rD, countSetBits64(vm.Reg.Get(rA)))
	case OpLeadingZeroBits32:
		vm.Reg.Set(rD, leadingZeroBits32(vm.Reg.Get32(rA)))
	case OpLeadingZeroBits64:
		vm.Reg.Set(rD, leadingZeroBits64(vm.Reg.Get(rA)))
	case OpTrailingZeroBits32:
		vm.Reg.Set(rD, trailingZeroBits32(vm.Reg.Get32(rA)))
	case OpTrailingZeroBits64:
		vm.Reg.Set(rD, trailingZeroBits64(vm.Reg.Get(rA)))

	case OpLoadImm:
		vm.Reg.Set(rD, d.imm[0])

	case OpLoadU8, OpLoadI8, OpLoadU16, OpLoadI16, OpLoadU32, OpLoadI32, OpLoadU64:
		return vm.execLoadAbs(d.op, rD, effectiveAddr(d.imm[0], 0))
	case OpStoreU8, OpStoreU16, OpStoreU32, OpStoreU64:
		return vm.execStoreAbs(d.op, effectiveAddr(d.imm[0], 0), vm.Reg.Get(rD))
	case OpStoreImmU8, OpStoreImmU16, OpStoreImmU32, OpStoreImmU64:
		return vm.execStoreAbs(storeImmWidth(d.op), effectiveAddr(d.imm[0], 0), d.imm[1])

	case OpLoadIndU8, OpLoadIndI8, OpLoadIndU16, OpLoadIndI16, OpLoadIndU32, OpLoadIndI32, OpLoadIndU64:
		return vm.execLoadAbs(d.op, rD, effectiveAddr(vm.Reg.Get(rA), d.imm[0]))
	case OpStoreIndU8, OpStoreIndU16, OpStoreIndU32, OpStoreIndU64:
		return vm.execStoreAbs(d.op, effectiveAddr(vm.Reg.Get(rD), d.imm[0]), vm.Reg.Get(rA))

	default:
		vm.Result = ResultPanic
		return false
	}
	return true
}

// effectiveAddr computes base+offset truncated to the 32-bit address
// space: wraparound is well-defined, never an overflow trap.
func effectiveAddr(base, offset uint64) uint64 {
	return uint64(uint32(base + offset))
}

// execLoadAbs loads from an absolute address into register rD, with
// sign/zero extension selected by op's width/signedness. rA/rD indirect
// forms pass their own already-computed addr in place of the immediate.
func (vm *VM) execLoadAbs(op Opcode, rD int, addr uint64) bool {
	size, signed := loadShape(op)
	raw, err := vm.Mem.Read(addr, size)
	if err != nil {
		vm.memFail(err)
		return false
	}
	var v uint64
	for i := len(raw) - 1; i >= 0; i-- {
		v = v<<8 | uint64(raw[i])
	}
	if signed && size < 8 {
		shift := uint(64 - 8*size)
		v = uint64(int64(v<<shift) >> shift)
	}
	vm.Reg.Set(rD, v)
	return true
}

func (vm *VM) execStoreAbs(op Opcode, addr, value uint64) bool {
	size, _ := loadShape(op)
	buf := make([]byte, size)
	for i := uint64(0); i < size; i++ {
		buf[i] = byte(value)
		value >>= 8
	}
	if err := vm.Mem.Write(addr, buf); err != nil {
		vm.memFail(err)
		return false
	}
	return true
}

// memFail classifies a failed load/store: touching the reserved low
// region is a program error (PANIC), anything else is a page fault
// carrying the offending address.
func (vm *VM) memFail(err error) {
	if a, ok := asFault(err); ok && a >= params.ReservedMemoryStart {
		vm.fault(a)
		return
	}
	vm.Result = ResultPanic
}

// loadShape returns the access width in bytes and whether the loaded value
// is sign-extended, for any opcode in the LOAD_*/LOAD_IND_* families plus
// the width markers used internally by store dispatch.
func loadShape(op Opcode) (size uint64, signed bool) {
	switch op {
	case OpLoadU8, OpLoadIndU8, OpStoreU8, OpStoreIndU8:
		return 1, false
	case OpLoadI8, OpLoadIndI8:
		return 1, true
	case OpLoadU16, OpLoadIndU16, OpStoreU16, OpStoreIndU16:
		return 2, false
	case OpLoadI16, OpLoadIndI16:
		return 2, true
	case OpLoadU32, OpLoadIndU32, OpStoreU32, OpStoreIndU32:
		return 4, false
	case OpLoadI32, OpLoadIndI32:
		return 4, true
	case OpLoadU64, OpLoadIndU64, OpStoreU64, OpStoreIndU64:
		return 8, false
	default:
		return 8, false
	}
}

// storeImmWidth maps a STORE_IMM_* opcode to the plain STORE_* marker of
// the same width, so execStoreAbs can reuse loadShape instead of a second
// width table.
func storeImmWidth(op Opcode) Opcode {
	switch op {
	case OpStoreImmU8:
		return OpStoreU8
	case OpStoreImmU16:
		return OpStoreU16
	case OpStoreImmU32:
		return OpStoreU32
	default:
		return OpStoreU64
	}
}

// branchTaken evaluates a BRANCH_* condition against its decoded operands.
func (vm *VM) branchTaken(d decoded) bool {
	switch d.op {
	case OpBranchEq:
		return vm.Reg.Get(d.regs[0]) == vm.Reg.Get(d.regs[1])
	case OpBranchNe:
		return vm.Reg.Get(d.regs[0]) != vm.Reg.Get(d.regs[1])
	case OpBranchLtU:
		return vm.Reg.Get(d.regs[0]) < vm.Reg.Get(d.regs[1])
	case OpBranchLtS:
		return int64(vm.Reg.Get(d.regs[0])) < int64(vm.Reg.Get(d.regs[1]))
	case OpBranchLeU:
		return vm.Reg.Get(d.regs[0]) <= vm.Reg.Get(d.regs[1])
	case OpBranchLeS:
		return int64(vm.Reg.Get(d.regs[0])) <= int64(vm.Reg.Get(d.regs[1]))
	case OpBranchGeU:
		return vm.Reg.Get(d.regs[0]) >= vm.Reg.Get(d.regs[1])
	case OpBranchGeS:
		return int64(vm.Reg.Get(d.regs[0])) >= int64(vm.Reg.Get(d.regs[1]))
	case OpBranchGtU:
		return vm.Reg.Get(d.regs[0]) > vm.Reg.Get(d.regs[1])
	case OpBranchGtS:
		return int64(vm.Reg.Get(d.regs[0])) > int64(vm.Reg.Get(d.regs[1]))
	case OpBranchEqImm:
		return vm.Reg.Get(d.regs[0]) == d.imm[0]
	case OpBranchNeImm:
		return vm.Reg.Get(d.regs[0]) != d.imm[0]
	case OpBranchLtUImm:
		return vm.Reg.Get(d.regs[0]) < d.imm[0]
	case OpBranchLtSImm:
		return int64(vm.Reg.Get(d.regs[0])) < int64(d.imm[0])
	case OpBranchLeUImm:
		return vm.Reg.Get(d.regs[0]) <= d.imm[0]
	case OpBranchLeSImm:
		return int64(vm.Reg.Get(d.regs[0])) <= int64(d.imm[0])
	case OpBranchGeUImm:
		return vm.Reg.Get(d.regs[0]) >= d.imm[0]
	case OpBranchGeSImm:
		return int64(vm.Reg.Get(d.regs[0])) >= int64(d.imm[0])
	case OpBranchGtUImm:
		return vm.Reg.Get(d.regs[0]) > d.imm[0]
	case OpBranchGtSImm:
		return int64(vm.Reg.Get(d.regs[0])) > int64(d.imm[0])
	default:
		return false
	}
}
