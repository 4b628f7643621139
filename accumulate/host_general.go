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

package accumulate

import (
	"github.com/probechain/pvm/common"
	"github.com/probechain/pvm/pvm"
	"github.com/probechain/pvm/state"
)

// Host-call IDs 0..13: the "general" calls shared with refine and
// is-authorized. Only GAS, LOOKUP, READ, WRITE, and INFO have
// state-visible semantics inside accumulate; FETCH and the
// nested-machine family MACHINE/PEEK/POKE/PAGES/INVOKE/EXPUNGE belong to
// refine's recursive-invocation model and dispatch here only far enough
// to return WHAT.
const (
	hcGas = iota
	hcFetch
	hcLookup
	hcRead
	hcWrite
	hcInfo
	hcHistoricalLookup
	hcExport
	hcMachine
	hcPeek
	hcPoke
	hcPages
	hcInvoke
	hcExpunge
)

// dispatchGeneral handles host-call ids 0..13. It returns handled=false
// if id is not one of these (the caller falls through to the accumulate
// table). Memory faults terminate as PANIC with r7 untouched, same as
// the accumulate table.
func dispatchGeneral(id uint64, im *ImplicationsPair, gas *int64, reg *pvm.Registers, mem *pvm.Memory) (handled bool, terminal bool, code pvm.ResultCode) {
	switch id {
	case hcGas:
		reg.Set(7, uint64(*gas))
	case hcLookup:
		return true, hostLookup(im, reg, mem), pvm.ResultPanic
	case hcRead:
		return true, hostRead(im, reg, mem), pvm.ResultPanic
	case hcWrite:
		return true, hostWrite(im, reg, mem), pvm.ResultPanic
	case hcInfo:
		return true, hostInfo(im, reg, mem), pvm.ResultPanic
	case hcFetch, hcHistoricalLookup, hcExport, hcMachine, hcPeek, hcPoke, hcPages, hcInvoke, hcExpunge:
		reg.Set(7, ErrWHAT)
	default:
		return false, false, 0
	}
	return true, false, 0
}

// resolveTarget maps a register-carried service-id operand to the account
// it names; ErrNONE in that slot means "the caller's own account".
func resolveTarget(im *ImplicationsPair, raw uint64) (*state.ServiceAccount, bool) {
	id := im.X.ID
	if raw != ErrNONE {
		id = common.ServiceID(uint32(raw))
	}
	acc, ok := im.X.State.Accounts[id]
	return acc, ok && acc != nil
}

// hostLookup implements LOOKUP (id=2): r7=target service (or self),
// r8=hash ptr, r9=out ptr, r10=out max len. Copies a stored preimage blob
// into memory, truncated to the caller's buffer, or sets r7=NONE if
// absent.
func hostLookup(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	acc, ok := resolveTarget(im, reg.Get(7))
	if !ok {
		reg.Set(7, ErrNONE)
		return false
	}

	hashBytes, err := mem.Read(reg.Get(8), common.HashLength)
	if err != nil {
		return true
	}
	blob, ok := acc.Preimage(common.BytesToHash(hashBytes))
	if !ok {
		reg.Set(7, ErrNONE)
		return false
	}
	n := uint64(len(blob))
	if max := reg.Get(10); n > max {
		n = max
	}
	if err := mem.Write(reg.Get(9), blob[:n]); err != nil {
		return true
	}
	reg.Set(7, uint64(len(blob)))
	return false
}

// hostRead implements READ (id=3): r7=target service (or self), r8=key
// ptr, r9=key len, r10=out ptr, r11=out max len.
func hostRead(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	acc, ok := resolveTarget(im, reg.Get(7))
	if !ok {
		reg.Set(7, ErrNONE)
		return false
	}
	key, err := mem.Read(reg.Get(8), reg.Get(9))
	if err != nil {
		return true
	}
	val, ok := acc.Get(key)
	if !ok {
		reg.Set(7, ErrNONE)
		return false
	}
	n := uint64(len(val))
	if max := reg.Get(11); n > max {
		n = max
	}
	if err := mem.Write(reg.Get(10), val[:n]); err != nil {
		return true
	}
	reg.Set(7, uint64(len(val)))
	return false
}

// hostWrite implements WRITE (id=4): r7=key ptr, r8=key len, r9=value ptr,
// r10=value len (0 deletes). Always writes to the caller's own account.
// LOW (insufficient balance for the new footprint) is reported in-band
// via r7; only memory faults terminate.
func hostWrite(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	acc := im.X.State.Accounts[im.X.ID]
	key, err := mem.Read(reg.Get(7), reg.Get(8))
	if err != nil {
		return true
	}
	var value []byte
	if reg.Get(10) > 0 {
		value, err = mem.Read(reg.Get(9), reg.Get(10))
		if err != nil {
			return true
		}
	}
	prior, existed := acc.Get(key)
	priorLen := uint64(ErrNONE)
	if existed {
		priorLen = uint64(len(prior))
	}
	acc.Set(key, value)
	if acc.Deposit() > acc.Balance {
		// Roll the write back rather than leave an under-collateralized
		// account: WRITE's deposit check is part of its own atomic effect.
		acc.Set(key, prior)
		reg.Set(7, ErrLOW)
		return false
	}
	reg.Set(7, priorLen)
	return false
}

// hostInfo implements INFO (id=5): r7=target service (or self), r8=out
// ptr. Writes a fixed-width account metadata snapshot.
func hostInfo(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	acc, ok := resolveTarget(im, reg.Get(7))
	if !ok {
		reg.Set(7, ErrNONE)
		return false
	}
	if err := mem.Write(reg.Get(8), encodeAccountInfo(acc)); err != nil {
		return true
	}
	reg.Set(7, ErrOK)
	return false
}
