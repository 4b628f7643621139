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

import (
	"encoding/binary"

	"github.com/probechain/pvm/params"
)

// Program is the decoded form of a service code blob: the instruction
// stream, the basic-block entry-bit bitmask carried alongside it (one bit
// per code byte — the bits are authoritative, never derived by
// disassembling the code), and the dynamic jump table used by JUMP_IND
// and LOAD_IMM_JUMP_IND.
type Program struct {
	Code      []byte
	Bitmask   []bool
	JumpTable []uint32
}

// Decode parses a code blob into a Program. The wire layout is:
//
//	u32 jumpTableCount | u8 jumpTableEntrySize | jumpTableCount*entrySize bytes
//	u32 codeLen | codeLen bytes of code | ceil(codeLen/8) bytes of bitmask
//
// Any truncation or inconsistency (an entry size outside 1..4, a bitmask
// whose length doesn't match codeLen) is a structural malformation and
// reported as ErrMalformedBlob rather than a PANIC — it is detected
// before Ψ ever begins executing.
func Decode(blob []byte) (*Program, error) {
	r := &reader{buf: blob}

	tableCount, ok := r.u32()
	if !ok {
		return nil, ErrMalformedBlob
	}
	entrySize, ok := r.u8()
	if !ok || entrySize == 0 || entrySize > 4 {
		return nil, ErrMalformedBlob
	}
	jumpTable := make([]uint32, tableCount)
	for i := range jumpTable {
		v, ok := r.uintN(int(entrySize))
		if !ok {
			return nil, ErrMalformedBlob
		}
		jumpTable[i] = uint32(v)
	}

	codeLen, ok := r.u32()
	if !ok {
		return nil, ErrMalformedBlob
	}
	code, ok := r.bytes(int(codeLen))
	if !ok {
		return nil, ErrMalformedBlob
	}

	bitmaskLen := (int(codeLen) + 7) / 8
	bitmaskBytes, ok := r.bytes(bitmaskLen)
	if !ok {
		return nil, ErrMalformedBlob
	}
	bitmask := make([]bool, codeLen)
	for i := range bitmask {
		bitmask[i] = bitmaskBytes[i/8]&(1<<uint(i%8)) != 0
	}

	if !r.atEnd() {
		return nil, ErrMalformedBlob
	}

	return &Program{Code: code, Bitmask: bitmask, JumpTable: jumpTable}, nil
}

// EntryAt reports whether target is both in range and marked as a
// basic-block entry point — the check every jump, branch-taken, and the
// initial PC of an invocation must pass.
func (p *Program) EntryAt(target uint32) bool {
	return int(target) < len(p.Bitmask) && p.Bitmask[target]
}

// JumpTarget resolves a dynamic jump index into a code offset. The index
// must be a multiple of JumpTableAlignment; JumpTarget divides it by
// JumpTableAlignment itself to select the jump table entry.
func (p *Program) JumpTarget(index uint64) (uint32, bool) {
	if index%params.JumpTableAlignment != 0 {
		return 0, false
	}
	slot := index / params.JumpTableAlignment
	if slot >= uint64(len(p.JumpTable)) {
		return 0, false
	}
	return p.JumpTable[slot], true
}

// reader is a small cursor over a byte slice used only by Decode; it never
// panics, reporting short reads as a bool instead, so malformed blobs are
// always handled as data rather than as a program crash.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) atEnd() bool { return r.pos == len(r.buf) }

func (r *reader) u8() (byte, bool) {
	if r.pos+1 > len(r.buf) {
		return 0, false
	}
	v := r.buf[r.pos]
	r.pos++
	return v, true
}

func (r *reader) u32() (uint32, bool) {
	if r.pos+4 > len(r.buf) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, true
}

func (r *reader) uintN(n int) (uint64, bool) {
	if r.pos+n > len(r.buf) {
		return 0, false
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(r.buf[r.pos+i])
	}
	r.pos += n
	return v, true
}

func (r *reader) bytes(n int) ([]byte, bool) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, false
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, true
}

// decoded is one fetched-and-parsed instruction.
type decoded struct {
	op        Opcode
	regs      [3]int
	imm       [2]uint64
	offset    int32
	length    int
	malformed bool
}

// validImmLen enumerates the only byte counts a length-prefix byte may
// legally declare for a variable-width immediate.
func validImmLen(n byte) bool {
	switch n {
	case 0, 1, 2, 4, 8:
		return true
	default:
		return false
	}
}

// decodeAt fetches and parses the instruction at code[pc]. It never
// reads out of bounds: any operand that would require bytes past the end
// of code, an out-of-range opcode byte, or an invalid immediate
// length-prefix byte sets malformed=true, which Run() treats as an
// immediate PANIC.
func decodeAt(code []byte, pc uint32) decoded {
	start := int(pc)
	if start >= len(code) {
		return decoded{malformed: true, length: 0}
	}
	pos := start
	op := Opcode(code[pos])
	pos++

	if !op.defined() {
		return decoded{op: op, malformed: true, length: pos - start}
	}
	shape := shapes[op]

	var d decoded
	d.op = op

	regBytes := (shape.numRegs + 1) / 2
	if pos+regBytes > len(code) {
		return decoded{op: op, malformed: true, length: len(code) - start}
	}
	for i := 0; i < shape.numRegs; i++ {
		b := code[pos+i/2]
		var nibble byte
		if i%2 == 0 {
			nibble = b >> 4
		} else {
			nibble = b & 0x0f
		}
		d.regs[i] = clampIndex(int(nibble))
	}
	pos += regBytes

	for slot := 0; slot < shape.numImms; slot++ {
		if pos >= len(code) {
			return decoded{op: op, malformed: true, length: len(code) - start}
		}
		n := code[pos]
		pos++
		if !validImmLen(n) || pos+int(n) > len(code) {
			return decoded{op: op, malformed: true, length: len(code) - start}
		}
		var raw uint64
		for i := int(n) - 1; i >= 0; i-- {
			raw = raw<<8 | uint64(code[pos+i])
		}
		pos += int(n)
		if shape.immSigned[slot] && n > 0 && n < 8 {
			shift := uint(64 - 8*n)
			raw = uint64(int64(raw<<shift) >> shift)
		}
		d.imm[slot] = raw
	}

	if shape.hasOffset {
		if pos+4 > len(code) {
			return decoded{op: op, malformed: true, length: len(code) - start}
		}
		d.offset = int32(binary.LittleEndian.Uint32(code[pos:]))
		pos += 4
	}

	d.length = pos - start
	return d
}
