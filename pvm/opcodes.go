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

// Package pvm implements the bytecode interpreter core: the program blob
// decoder, the 13-register file, paged linear memory, and the
// fetch-decode-execute loop Ψ. The machine is 64-bit with variable-width
// operands decoded from a mixed code/bitmask blob; every opcode byte has
// a defined skip length so decoding stays bijective even over corrupt
// instruction streams.
package pvm

// Opcode is an 8-bit instruction code.
type Opcode uint8

// Every defined instruction, grouped by operand shape. Byte values are
// assigned sequentially; everything at or above opcodeCount is an
// undefined opcode that decodes to PANIC with a 1-byte skip length.
const (
	OpTrap Opcode = iota
	OpFallthrough

	// ---- 3-register arithmetic/bitwise (rD, rA, rB), width-suffixed ----
	OpAdd32
	OpAdd64
	OpSub32
	OpSub64
	OpMul32
	OpMul64
	OpDivU32
	OpDivU64
	OpDivS32
	OpDivS64
	OpRemU32
	OpRemU64
	OpRemS32
	OpRemS64
	OpShloL32
	OpShloL64
	OpShloR32
	OpShloR64
	OpSharR32
	OpSharR64
	OpRotL32
	OpRotL64
	OpRotR32
	OpRotR64
	OpMulUpperSS64
	OpMulUpperUU64
	OpMulUpperSU64
	OpSetLtU
	OpSetLtS
	OpCmovIZ
	OpCmovNZ
	OpMaxS
	OpMaxU
	OpMinS
	OpMinU
	OpAnd
	OpOr
	OpXor
	OpAndInv
	OpOrInv
	OpXnor

	// ---- 2-register unary ----
	OpSignExtend8
	OpSignExtend16
	OpZeroExtend16
	OpReverseBytes
	OpCountSetBits32
	OpCountSetBits64
	OpLeadingZeroBits32
	OpLeadingZeroBits64
	OpTrailingZeroBits32
	OpTrailingZeroBits64

	// ---- Immediate load ----
	OpLoadImm // rD = sign-extend(imm)

	// ---- Control transfer ----
	OpJump            // absolute target, variable-width immediate, no entry check exemption
	OpJumpInd         // rBase + offset imm -> dynamic jump table lookup
	OpLoadImmJump     // rD = imm; jump to absolute target (variable-width immediate)
	OpLoadImmJumpInd  // rD = imm; jump via dynamic table at rBase+offset
	OpEcalli          // imm -> r0; suspend as HOST

	// ---- Heap ----
	OpSbrk // rD = prior break; grows heap by rB

	// ---- Memory: immediate absolute address, register value/destination ----
	OpLoadU8
	OpLoadI8
	OpLoadU16
	OpLoadI16
	OpLoadU32
	OpLoadI32
	OpLoadU64
	OpStoreU8
	OpStoreU16
	OpStoreU32
	OpStoreU64

	// ---- Memory: pure immediate (no registers) ----
	OpStoreImmU8
	OpStoreImmU16
	OpStoreImmU32
	OpStoreImmU64

	// ---- Memory: register-indirect (base register + immediate offset) ----
	OpLoadIndU8
	OpLoadIndI8
	OpLoadIndU16
	OpLoadIndI16
	OpLoadIndU32
	OpLoadIndI32
	OpLoadIndU64
	OpStoreIndU8
	OpStoreIndU16
	OpStoreIndU32
	OpStoreIndU64

	// ---- Branches: register-register + fixed 4-byte signed offset ----
	OpBranchEq
	OpBranchNe
	OpBranchLtU
	OpBranchLtS
	OpBranchLeU
	OpBranchLeS
	OpBranchGeU
	OpBranchGeS
	OpBranchGtU
	OpBranchGtS

	// ---- Branches: register-immediate + fixed 4-byte signed offset ----
	OpBranchEqImm
	OpBranchNeImm
	OpBranchLtUImm
	OpBranchLtSImm
	OpBranchLeUImm
	OpBranchLeSImm
	OpBranchGeUImm
	OpBranchGeSImm
	OpBranchGtUImm
	OpBranchGtSImm

	// opcodeCount must remain the last constant: it bounds the dense
	// metadata table and everything at or above it is an undefined opcode
	// (legal, always decodes to PANIC with a 1-byte skip length).
	opcodeCount
)

// operandShape describes how to decode the bytes following an opcode
// byte: a packed-nibble register list, 0-2 length-prefixed variable
// immediates, and an optional fixed 4-byte signed branch offset.
type operandShape struct {
	name      string
	numRegs   int
	numImms   int
	hasOffset bool
	// immSigned[i] reports whether the i-th immediate is sign-extended on
	// decode (vs zero-extended). Offsets are always signed.
	immSigned [2]bool
}

var shapes = [opcodeCount]operandShape{
	OpTrap:        {name: "TRAP"},
	OpFallthrough: {name: "FALLTHROUGH"},

	OpAdd32: {name: "ADD_32", numRegs: 3}, OpAdd64: {name: "ADD_64", numRegs: 3},
	OpSub32: {name: "SUB_32", numRegs: 3}, OpSub64: {name: "SUB_64", numRegs: 3},
	OpMul32: {name: "MUL_32", numRegs: 3}, OpMul64: {name: "MUL_64", numRegs: 3},
	OpDivU32: {name: "DIV_U_32", numRegs: 3}, OpDivU64: {name: "DIV_U_64", numRegs: 3},
	OpDivS32: {name: "DIV_S_32", numRegs: 3}, OpDivS64: {name: "DIV_S_64", numRegs: 3},
	OpRemU32: {name: "REM_U_32", numRegs: 3}, OpRemU64: {name: "REM_U_64", numRegs: 3},
	OpRemS32: {name: "REM_S_32", numRegs: 3}, OpRemS64: {name: "REM_S_64", numRegs: 3},
	OpShloL32: {name: "SHLO_L_32", numRegs: 3}, OpShloL64: {name: "SHLO_L_64", numRegs: 3},
	OpShloR32: {name: "SHLO_R_32", numRegs: 3}, OpShloR64: {name: "SHLO_R_64", numRegs: 3},
	OpSharR32: {name: "SHAR_R_32", numRegs: 3}, OpSharR64: {name: "SHAR_R_64", numRegs: 3},
	OpRotL32: {name: "ROT_L_32", numRegs: 3}, OpRotL64: {name: "ROT_L_64", numRegs: 3},
	OpRotR32: {name: "ROT_R_32", numRegs: 3}, OpRotR64: {name: "ROT_R_64", numRegs: 3},
	OpMulUpperSS64: {name: "MUL_UPPER_SS_64", numRegs: 3},
	OpMulUpperUU64: {name: "MUL_UPPER_UU_64", numRegs: 3},
	OpMulUpperSU64: {name: "MUL_UPPER_SU_64", numRegs: 3},
	OpSetLtU: {name: "SET_LT_U", numRegs: 3}, OpSetLtS: {name: "SET_LT_S", numRegs: 3},
	OpCmovIZ: {name: "CMOV_IZ", numRegs: 3}, OpCmovNZ: {name: "CMOV_NZ", numRegs: 3},
	OpMaxS: {name: "MAX_S", numRegs: 3}, OpMaxU: {name: "MAX_U", numRegs: 3},
	OpMinS: {name: "MIN_S", numRegs: 3}, OpMinU: {name: "MIN_U", numRegs: 3},
	OpAnd: {name: "AND", numRegs: 3}, OpOr: {name: "OR", numRegs: 3}, OpXor: {name: "XOR", numRegs: 3},
	OpAndInv: {name: "AND_INV", numRegs: 3}, OpOrInv: {name: "OR_INV", numRegs: 3}, OpXnor: {name: "XNOR", numRegs: 3},

	OpSignExtend8:  {name: "SIGN_EXTEND_8", numRegs: 2},
	OpSignExtend16: {name: "SIGN_EXTEND_16", numRegs: 2},
	OpZeroExtend16: {name: "ZERO_EXTEND_16", numRegs: 2},
	OpReverseBytes: {name: "REVERSE_BYTES", numRegs: 2},
	OpCountSetBits32: {name: "COUNT_SET_BITS_32", numRegs: 2}, OpCountSetBits64: {name: "COUNT_SET_BITS_64", numRegs: 2},
	OpLeadingZeroBits32: {name: "LEADING_ZERO_BITS_32", numRegs: 2}, OpLeadingZeroBits64: {name: "LEADING_ZERO_BITS_64", numRegs: 2},
	OpTrailingZeroBits32: {name: "TRAILING_ZERO_BITS_32", numRegs: 2}, OpTrailingZeroBits64: {name: "TRAILING_ZERO_BITS_64", numRegs: 2},

	OpLoadImm: {name: "LOAD_IMM", numRegs: 1, numImms: 1, immSigned: [2]bool{true, false}},

	OpJump:           {name: "JUMP", numImms: 1},
	OpJumpInd:        {name: "JUMP_IND", numRegs: 1, numImms: 1},
	OpLoadImmJump:    {name: "LOAD_IMM_JUMP", numRegs: 1, numImms: 2, immSigned: [2]bool{true, false}},
	OpLoadImmJumpInd: {name: "LOAD_IMM_JUMP_IND", numRegs: 2, numImms: 2, immSigned: [2]bool{true, false}},
	OpEcalli:         {name: "ECALLI", numImms: 1},

	OpSbrk: {name: "SBRK", numRegs: 2},

	OpLoadU8: {name: "LOAD_U8", numRegs: 1, numImms: 1}, OpLoadI8: {name: "LOAD_I8", numRegs: 1, numImms: 1},
	OpLoadU16: {name: "LOAD_U16", numRegs: 1, numImms: 1}, OpLoadI16: {name: "LOAD_I16", numRegs: 1, numImms: 1},
	OpLoadU32: {name: "LOAD_U32", numRegs: 1, numImms: 1}, OpLoadI32: {name: "LOAD_I32", numRegs: 1, numImms: 1},
	OpLoadU64: {name: "LOAD_U64", numRegs: 1, numImms: 1},
	OpStoreU8: {name: "STORE_U8", numRegs: 1, numImms: 1}, OpStoreU16: {name: "STORE_U16", numRegs: 1, numImms: 1},
	OpStoreU32: {name: "STORE_U32", numRegs: 1, numImms: 1}, OpStoreU64: {name: "STORE_U64", numRegs: 1, numImms: 1},

	OpStoreImmU8: {name: "STORE_IMM_U8", numImms: 2}, OpStoreImmU16: {name: "STORE_IMM_U16", numImms: 2},
	OpStoreImmU32: {name: "STORE_IMM_U32", numImms: 2}, OpStoreImmU64: {name: "STORE_IMM_U64", numImms: 2},

	OpLoadIndU8: {name: "LOAD_IND_U8", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpLoadIndI8: {name: "LOAD_IND_I8", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpLoadIndU16: {name: "LOAD_IND_U16", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpLoadIndI16: {name: "LOAD_IND_I16", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpLoadIndU32: {name: "LOAD_IND_U32", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpLoadIndI32: {name: "LOAD_IND_I32", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpLoadIndU64: {name: "LOAD_IND_U64", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpStoreIndU8: {name: "STORE_IND_U8", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpStoreIndU16: {name: "STORE_IND_U16", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpStoreIndU32: {name: "STORE_IND_U32", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},
	OpStoreIndU64: {name: "STORE_IND_U64", numRegs: 2, numImms: 1, immSigned: [2]bool{true, false}},

	OpBranchEq: {name: "BRANCH_EQ", numRegs: 2, hasOffset: true}, OpBranchNe: {name: "BRANCH_NE", numRegs: 2, hasOffset: true},
	OpBranchLtU: {name: "BRANCH_LT_U", numRegs: 2, hasOffset: true}, OpBranchLtS: {name: "BRANCH_LT_S", numRegs: 2, hasOffset: true},
	OpBranchLeU: {name: "BRANCH_LE_U", numRegs: 2, hasOffset: true}, OpBranchLeS: {name: "BRANCH_LE_S", numRegs: 2, hasOffset: true},
	OpBranchGeU: {name: "BRANCH_GE_U", numRegs: 2, hasOffset: true}, OpBranchGeS: {name: "BRANCH_GE_S", numRegs: 2, hasOffset: true},
	OpBranchGtU: {name: "BRANCH_GT_U", numRegs: 2, hasOffset: true}, OpBranchGtS: {name: "BRANCH_GT_S", numRegs: 2, hasOffset: true},

	OpBranchEqImm: {name: "BRANCH_EQ_IMM", numRegs: 1, numImms: 1, hasOffset: true},
	OpBranchNeImm: {name: "BRANCH_NE_IMM", numRegs: 1, numImms: 1, hasOffset: true},
	OpBranchLtUImm: {name: "BRANCH_LT_U_IMM", numRegs: 1, numImms: 1, hasOffset: true},
	OpBranchLtSImm: {name: "BRANCH_LT_S_IMM", numRegs: 1, numImms: 1, hasOffset: true, immSigned: [2]bool{true, false}},
	OpBranchLeUImm: {name: "BRANCH_LE_U_IMM", numRegs: 1, numImms: 1, hasOffset: true},
	OpBranchLeSImm: {name: "BRANCH_LE_S_IMM", numRegs: 1, numImms: 1, hasOffset: true, immSigned: [2]bool{true, false}},
	OpBranchGeUImm: {name: "BRANCH_GE_U_IMM", numRegs: 1, numImms: 1, hasOffset: true},
	OpBranchGeSImm: {name: "BRANCH_GE_S_IMM", numRegs: 1, numImms: 1, hasOffset: true, immSigned: [2]bool{true, false}},
	OpBranchGtUImm: {name: "BRANCH_GT_U_IMM", numRegs: 1, numImms: 1, hasOffset: true},
	OpBranchGtSImm: {name: "BRANCH_GT_S_IMM", numRegs: 1, numImms: 1, hasOffset: true, immSigned: [2]bool{true, false}},
}

// String returns the mnemonic, or "UNDEFINED" for a byte value with no
// assigned instruction (still a legal opcode; it decodes to PANIC).
func (op Opcode) String() string {
	if int(op) >= len(shapes) || shapes[op].name == "" {
		return "UNDEFINED"
	}
	return shapes[op].name
}

// defined reports whether op has an assigned instruction.
func (op Opcode) defined() bool {
	return int(op) < len(shapes) && shapes[op].name != ""
}
