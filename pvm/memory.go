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
	"fmt"

	"github.com/probechain/pvm/params"
)

// Access is the permission bits a page may carry.
type Access uint8

const (
	AccessNone Access = iota
	AccessRead
	AccessReadWrite
)

// FaultError reports the address that triggered a page fault. Loads/stores
// never silently truncate a short read/write; they return the first
// faulting address.
type FaultError struct {
	Addr uint64
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("pvm: page fault at 0x%x", e.Addr)
}

// page is one 4 KiB granule of the address space.
type page struct {
	access Access
	data   [params.PageSize]byte
}

// Memory is the 2^32-byte paged linear address space µ. Pages are
// allocated lazily: an absent entry in the pages map behaves as an
// AccessNone page, so only the resident fraction of the address space
// costs anything.
type Memory struct {
	pages map[uint32]*page
	brk   uint64 // current heap break, grown by SBRK
}

// NewMemory returns an empty address space with no pages mapped. The heap
// break starts at params.ReservedMemoryStart.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32]*page), brk: params.ReservedMemoryStart}
}

func pageIndex(addr uint64) uint32 { return uint32(addr / params.PageSize) }

func (m *Memory) pageAt(idx uint32, create bool, access Access) *page {
	p, ok := m.pages[idx]
	if !ok {
		if !create {
			return nil
		}
		p = &page{access: access}
		m.pages[idx] = p
	}
	return p
}

// MapPage installs or reconfigures the access permission of the page
// containing addr. MapRange calls it for every page it covers; Ψ_M's
// prologue uses MapRange to map the argument zone, and SBRK uses it to mark
// newly created heap pages ReadWrite.
func (m *Memory) MapPage(addr uint64, access Access) {
	idx := pageIndex(addr)
	p := m.pageAt(idx, true, access)
	p.access = access
}

// MapRange maps every page fully or partially covered by [addr, addr+size)
// with the given access.
func (m *Memory) MapRange(addr, size uint64, access Access) {
	if size == 0 {
		return
	}
	start := pageIndex(addr)
	end := pageIndex(addr + size - 1)
	for idx := start; idx <= end; idx++ {
		m.MapPage(uint64(idx)*params.PageSize, access)
		if idx == ^uint32(0) {
			break
		}
	}
}

// checkRange validates that every byte in [addr, addr+size) lies in a page
// with at least `need` access, returning the first offending address.
func (m *Memory) checkRange(addr, size uint64, need Access) (uint64, bool) {
	if size == 0 {
		return 0, true
	}
	if addr < params.ReservedMemoryStart {
		return addr, false
	}
	end := addr + size // may wrap; callers are expected to pre-validate against 2^32
	for cur := addr; cur < end; {
		idx := pageIndex(cur)
		p := m.pages[idx]
		if p == nil || p.access < need {
			return cur, false
		}
		pageEnd := (uint64(idx) + 1) * params.PageSize
		if pageEnd > end {
			pageEnd = end
		}
		cur = pageEnd
	}
	return 0, true
}

// Read copies size bytes starting at addr into a fresh slice. Returns
// FaultError on any access violation.
func (m *Memory) Read(addr, size uint64) ([]byte, error) {
	if faultAddr, ok := m.checkRange(addr, size, AccessRead); !ok {
		return nil, &FaultError{Addr: faultAddr}
	}
	out := make([]byte, size)
	var n uint64
	for n < size {
		idx := pageIndex(addr + n)
		p := m.pages[idx]
		offset := (addr + n) % params.PageSize
		avail := uint64(params.PageSize) - offset
		remain := size - n
		if avail > remain {
			avail = remain
		}
		copy(out[n:n+avail], p.data[offset:offset+avail])
		n += avail
	}
	return out, nil
}

// Write copies data into the address space starting at addr. Returns
// FaultError on any access violation; no partial write is observable by the
// VM because Write validates the whole range before touching any byte.
func (m *Memory) Write(addr uint64, data []byte) error {
	size := uint64(len(data))
	if faultAddr, ok := m.checkRange(addr, size, AccessReadWrite); !ok {
		return &FaultError{Addr: faultAddr}
	}
	var n uint64
	for n < size {
		idx := pageIndex(addr + n)
		p := m.pages[idx]
		offset := (addr + n) % params.PageSize
		avail := uint64(params.PageSize) - offset
		remain := size - n
		if avail > remain {
			avail = remain
		}
		copy(p.data[offset:offset+avail], data[n:n+avail])
		n += avail
	}
	return nil
}

// ReadUint64 / WriteUint64 are convenience wrappers for host-side access.
func (m *Memory) ReadUint64(addr uint64) (uint64, error) {
	b, err := m.Read(addr, 8)
	if err != nil {
		return 0, err
	}
	return leUint64(b), nil
}

func (m *Memory) WriteUint64(addr, v uint64) error {
	return m.Write(addr, leBytes64(v))
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func leBytes64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// Sbrk grows the heap by delta bytes, returning the prior break. Newly
// covered pages are mapped ReadWrite. A request that would push the break
// past params.MaxHeapAddress is rejected: the break is left unchanged and
// 0 is returned, which callers observe as a subsequent FAULT on access
// rather than an explicit error here.
func (m *Memory) Sbrk(delta uint64) uint64 {
	prior := m.brk
	aligned := roundUp(delta, params.DynamicAddressAlignment)
	next := prior + aligned
	if next > params.MaxHeapAddress {
		return 0
	}
	m.MapRange(prior, aligned, AccessReadWrite)
	m.brk = next
	return prior
}

func roundUp(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	return (n + align - 1) / align * align
}
