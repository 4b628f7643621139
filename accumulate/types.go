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

// Package accumulate implements Ψ_A: the accumulate invocation that wraps
// invocation.Invoke (Ψ_M) in a two-dimensional regular/exceptional
// state-transition context over a state.PartialState, dispatching the
// 27-entry host-function table against it. Rollback is expressed as an
// explicit (imX, imY) dimension pair snapshotted by CHECKPOINT, never as
// exception unwinding: the interpreter's own state (pc, gas, registers)
// must survive a host-call failure intact.
package accumulate

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/probechain/pvm/common"
	"github.com/probechain/pvm/pvm"
	"github.com/probechain/pvm/state"
)

// Error codes written to r7 by host functions, 64-bit sentinels counting
// down from 2^64-1.
const (
	ErrOK   uint64 = 0
	ErrNONE uint64 = ^uint64(0)
	ErrWHAT uint64 = ^uint64(0) - 1
	ErrOOB  uint64 = ^uint64(2)
	ErrWHO  uint64 = ^uint64(3)
	ErrFULL uint64 = ^uint64(4)
	ErrCORE uint64 = ^uint64(5)
	ErrCASH uint64 = ^uint64(6)
	ErrLOW  uint64 = ^uint64(7)
	ErrHUH  uint64 = ^uint64(8)
)

// DeferredTransfer is a queued balance movement produced by TRANSFER,
// applied by the outer orchestrator at a later phase.
type DeferredTransfer struct {
	Source common.ServiceID
	Dest   common.ServiceID
	Amount uint64
	Memo   [128]byte
	Gas    uint64
}

// provisionKey is the comparable (serviceId, bytes) pair PROVIDE adds to
// Implications.Provisions; mapset.Set keys by ==, so the blob is folded
// into a string rather than kept as a []byte.
type provisionKey struct {
	Service common.ServiceID
	Data    string
}

// Implications is the mutable accumulate context: one "dimension" of the
// regular/exceptional pair Ψ_A maintains across a single invocation.
type Implications struct {
	ID    common.ServiceID
	State *state.PartialState

	NextFreeID uint32

	Xfers []DeferredTransfer
	Yield *common.Hash

	Provisions mapset.Set
}

// NewImplications seeds a fresh dimension.
func NewImplications(id common.ServiceID, st *state.PartialState, nextFreeID uint32) *Implications {
	return &Implications{
		ID:         id,
		State:      st,
		NextFreeID: nextFreeID,
		Provisions: mapset.NewSet(),
	}
}

// Clone deep-copies im, including its storage-bearing state, its transfer
// queue, yield buffer, and provisions set — the operation CHECKPOINT
// performs to snapshot imX into imY. No mutable object may remain aliased
// between the two dimensions afterwards; any shared allocation would
// silently defeat the rollback contract.
func (im *Implications) Clone() *Implications {
	out := &Implications{
		ID:         im.ID,
		State:      im.State.Clone(),
		NextFreeID: im.NextFreeID,
		Provisions: mapset.NewSet(),
	}
	out.Xfers = make([]DeferredTransfer, len(im.Xfers))
	copy(out.Xfers, im.Xfers)
	if im.Yield != nil {
		y := *im.Yield
		out.Yield = &y
	}
	im.Provisions.Each(func(item interface{}) bool {
		out.Provisions.Add(item)
		return false
	})
	return out
}

// ImplicationsPair is (imX, imY): the regular dimension that accumulates
// live mutations and the exceptional dimension captured at the last
// CHECKPOINT, substituted in on PANIC/OOG.
type ImplicationsPair struct {
	X *Implications
	Y *Implications
}

// AccumErrKind distinguishes the two structural-failure outcomes Ψ_A can
// return without ever entering the interpreter.
type AccumErrKind int

const (
	// ErrBad is "no such account" or "no such code" — codehash absent from
	// the preimage store, or a zero-length code blob.
	ErrBad AccumErrKind = iota
	// ErrBig is a service code blob over params.MaxServiceCodeSize.
	ErrBig
)

// AccumResult is Ψ_A's return value: either a structural Err before any
// gas is spent, or an Ok carrying the collapsed post-state and its side
// effects.
type AccumResult struct {
	Err   AccumErrKind
	IsErr bool

	PostState     *state.PartialState
	DeferredXfers []DeferredTransfer
	Yield         *common.Hash
	GasUsed       int64
	Provisions    mapset.Set
	ResultCode    pvm.ResultCode
}
