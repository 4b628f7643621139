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

import "math/bits"

// Exact integer semantics for the arithmetic instruction families. Every
// helper takes and returns the width it operates on (32 or 64); callers
// zero/sign-extend to the register's nominal width at the call site via
// Registers.Set/Set32. Division edge cases produce defined values, never
// traps.

// divU64 implements DIV_U at width 64: a÷b unsigned, b=0 ⇒ 2^64-1.
func divU64(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

// divU32 implements DIV_U at width 32: a÷b unsigned, b=0 ⇒ 2^32-1.
func divU32(a, b uint32) uint32 {
	if b == 0 {
		return ^uint32(0)
	}
	return a / b
}

// remU64 implements REM_U at width 64: b=0 ⇒ a.
func remU64(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

// remU32 implements REM_U at width 32: b=0 ⇒ a.
func remU32(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}

// divS64 implements DIV_S at width 64: signed division with the
// −2^63÷−1 ⇒ −2^63 overflow case and b=0 ⇒ −1.
func divS64(a, b int64) int64 {
	if b == 0 {
		return -1
	}
	if a == minInt64 && b == -1 {
		return minInt64
	}
	return a / b
}

// divS32 implements DIV_S at width 32.
func divS32(a, b int32) int32 {
	if b == 0 {
		return -1
	}
	if a == minInt32 && b == -1 {
		return minInt32
	}
	return a / b
}

// remS64 implements REM_S at width 64, consistent with divS64: b=0 ⇒ a;
// the −2^63÷−1 overflow case yields remainder 0.
func remS64(a, b int64) int64 {
	if b == 0 {
		return a
	}
	if a == minInt64 && b == -1 {
		return 0
	}
	return a % b
}

// remS32 implements REM_S at width 32.
func remS32(a, b int32) int32 {
	if b == 0 {
		return a
	}
	if a == minInt32 && b == -1 {
		return 0
	}
	return a % b
}

const (
	minInt64 = -1 << 63
	minInt32 = -1 << 31
)

// shloL64 implements SHLO_L (logical shift left) at width 64, shifting by
// b mod 64 — so a shift by the full width leaves a unchanged.
func shloL64(a uint64, b uint64) uint64 { return a << (b % 64) }

func shloL32(a uint32, b uint32) uint32 { return a << (b % 32) }

// shloR64 implements SHLO_R (logical shift right) at width 64.
func shloR64(a uint64, b uint64) uint64 { return a >> (b % 64) }

func shloR32(a uint32, b uint32) uint32 { return a >> (b % 32) }

// sharR64 implements SHAR_R (arithmetic, sign-extending shift right).
func sharR64(a int64, b uint64) int64 { return a >> (b % 64) }

func sharR32(a int32, b uint32) int32 { return a >> (b % 32) }

// rotL64/rotR64/rotL32/rotR32 implement ROT_L / ROT_R.
func rotL64(a uint64, b uint64) uint64 { return bits.RotateLeft64(a, int(b%64)) }
func rotR64(a uint64, b uint64) uint64 { return bits.RotateLeft64(a, -int(b%64)) }
func rotL32(a uint32, b uint32) uint32 { return bits.RotateLeft32(a, int(b%32)) }
func rotR32(a uint32, b uint32) uint32 { return bits.RotateLeft32(a, -int(b%32)) }

// mulUpperUU64 returns the upper 64 bits of the 128-bit unsigned product.
func mulUpperUU64(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

// mulUpperSS64 returns the upper 64 bits of the 128-bit signed product.
func mulUpperSS64(a, b int64) int64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	// Correct the unsigned high word for the signed operands' contribution.
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return int64(hi)
}

// mulUpperSU64 returns the upper 64 bits of the signed×unsigned 128-bit
// product (a signed, b unsigned).
func mulUpperSU64(a int64, b uint64) int64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return int64(hi)
}

func setLtU64(a, b uint64) uint64 {
	if a < b {
		return 1
	}
	return 0
}

func setLtS64(a, b int64) uint64 {
	if a < b {
		return 1
	}
	return 0
}

func maxS64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minS64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// signExtend8 sign-extends the low 8 bits of v to 64 bits.
func signExtend8(v uint64) uint64 { return uint64(int64(int8(v))) }

// signExtend16 sign-extends the low 16 bits of v to 64 bits.
func signExtend16(v uint64) uint64 { return uint64(int64(int16(v))) }

// signExtend32 sign-extends the low 32 bits of v to 64 bits.
func signExtend32(v uint64) uint64 { return uint64(int64(int32(v))) }

// zeroExtend16 zero-extends the low 16 bits of v to 64 bits.
func zeroExtend16(v uint64) uint64 { return uint64(uint16(v)) }

// reverseBytes64 reverses the byte order of a 64-bit word.
func reverseBytes64(v uint64) uint64 { return bits.ReverseBytes64(v) }

func countSetBits32(v uint32) uint64 { return uint64(bits.OnesCount32(v)) }
func countSetBits64(v uint64) uint64 { return uint64(bits.OnesCount64(v)) }
func leadingZeroBits32(v uint32) uint64 { return uint64(bits.LeadingZeros32(v)) }
func leadingZeroBits64(v uint64) uint64 { return uint64(bits.LeadingZeros64(v)) }
func trailingZeroBits32(v uint32) uint64 { return uint64(bits.TrailingZeros32(v)) }
func trailingZeroBits64(v uint64) uint64 { return uint64(bits.TrailingZeros64(v)) }
