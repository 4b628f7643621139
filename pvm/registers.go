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

package pvm

// NumRegisters is the number of logical registers in ρ.
const NumRegisters = 13

// Narrow32Floor is the lowest register index that is nominally 32-bit.
// r0..r7 are 64-bit; r8..r12 are 32-bit, stored zero-extended in their
// 64-bit cell.
const Narrow32Floor = 8

// Registers is the 13-cell register file ρ. All cells are stored as full
// 64-bit words; reads/writes of r8..r12 are masked to 32 bits by Get/Set so
// callers never have to remember the width split.
type Registers [NumRegisters]uint64

// clampIndex applies the min(12, n) clamp for malformed operand nibbles
// that decode to an out-of-range register index.
func clampIndex(n int) int {
	if n > NumRegisters-1 {
		return NumRegisters - 1
	}
	if n < 0 {
		return 0
	}
	return n
}

// Get reads register idx, zero-extending r8..r12 to 64 bits.
func (r *Registers) Get(idx int) uint64 {
	idx = clampIndex(idx)
	if idx >= Narrow32Floor {
		return uint64(uint32(r[idx]))
	}
	return r[idx]
}

// Get32 reads register idx truncated to its low 32 bits, for instructions
// whose 32-bit form operates on either register class uniformly.
func (r *Registers) Get32(idx int) uint32 {
	return uint32(r.Get(idx))
}

// Set writes v to register idx. Writes to r8..r12 are truncated to 32 bits
// before being stored (and therefore read back zero-extended).
func (r *Registers) Set(idx int, v uint64) {
	idx = clampIndex(idx)
	if idx >= Narrow32Floor {
		r[idx] = uint64(uint32(v))
		return
	}
	r[idx] = v
}

// Set32 writes a 32-bit value, zero-extending it to 64 bits before storing —
// the uniform write path for instructions that produce a 32-bit result
// regardless of the destination register's nominal width.
func (r *Registers) Set32(idx int, v uint32) {
	r.Set(idx, uint64(v))
}
