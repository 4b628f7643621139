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
	"encoding/binary"

	"github.com/probechain/pvm/common"
	"github.com/probechain/pvm/invocation"
	"github.com/probechain/pvm/params"
	"github.com/probechain/pvm/pvm"
	"github.com/probechain/pvm/pvmlog"
	"github.com/probechain/pvm/state"
)

// entryPC is the fixed ABI entry offset Ψ_A launches every service
// program at.
const entryPC = 5

// Input is one element of the inputs slice Ψ_A is given. This module only
// models the one variant that has state-visible effect before the VM even
// starts: a deferred transfer destined for this invocation's service.
// Other input kinds (work results) are opaque payloads the service
// program consumes itself via host calls.
type Input struct {
	Transfer *DeferredTransfer
}

// Invoke runs Ψ_A. numCores parameterizes BLESS/ASSIGN's per-core arrays;
// entropy is the 32-byte entropy accumulator hashed into the nextFreeId
// derivation.
func Invoke(st *state.PartialState, store PreimageStore, timeslot uint32, serviceID common.ServiceID, gas int64, inputs []Input, numCores int, entropy [32]byte) AccumResult {
	acc, ok := st.Accounts[serviceID]
	if !ok {
		return AccumResult{IsErr: true, Err: ErrBad}
	}
	code, ok := store.Code(acc.CodeHash)
	if !ok || len(code) == 0 {
		return AccumResult{IsErr: true, Err: ErrBad}
	}
	if len(code) > params.MaxServiceCodeSize {
		return AccumResult{IsErr: true, Err: ErrBig}
	}

	postXferState := applyDeferredTransfers(st, serviceID, inputs)

	nextFreeID := deriveNextFreeID(serviceID, entropy, timeslot, postXferState.Accounts)

	// imX and imY start as independent clones of the same post-transfer
	// state: imX is what the program mutates; imY is what a PANIC before
	// the first CHECKPOINT collapses to. They must not share a single
	// *state.PartialState here, or imX's in-place mutations to
	// accounts/maps would leak into imY despite no CHECKPOINT ever running.
	imX := NewImplications(serviceID, postXferState.Clone(), nextFreeID)
	imY := NewImplications(serviceID, postXferState.Clone(), nextFreeID)
	pair := &ImplicationsPair{X: imX, Y: imY}

	args := encodeAccumulateArgs(timeslot, serviceID, len(inputs))

	dispatch := func(hostCall uint64, gasPtr *int64, reg *pvm.Registers, mem *pvm.Memory, ctx interface{}) (bool, pvm.ResultCode) {
		im := ctx.(*ImplicationsPair)
		*gasPtr -= params.HostCallGas
		if *gasPtr < 0 {
			// The flat fee alone exhausted the budget: terminate before
			// the host function observes or mutates anything.
			return false, pvm.ResultOOG
		}

		if handled, terminal, code := dispatchGeneral(hostCall, im, gasPtr, reg, mem); handled {
			if terminal {
				return false, code
			}
			return true, 0
		}
		if handled, terminal, code := dispatchAccumulate(hostCall, im, gasPtr, timeslot, numCores, reg, mem); handled {
			if terminal {
				return false, code
			}
			if hostCall == hcTransfer && reg.Get(7) == ErrOK {
				// TRANSFER charges an additional gasLimit only when it
				// actually queues a transfer, never on the flat-fee
				// failure path.
				*gasPtr -= int64(reg.Get(9))
			}
			return true, 0
		}

		pvmlog.Debug("accumulate: unknown host call", "id", hostCall)
		reg.Set(7, ErrWHAT)
		return true, 0
	}

	gasConsumed, result, _ := invocation.Invoke(code, entryPC, gas, args, dispatch, pair)

	final := collapse(pair, result.Code)
	if result.Code == pvm.ResultHalt && len(result.Halt) > 0 {
		h := sliceToHash(result.Halt)
		final.Yield = &h
	}

	return AccumResult{
		PostState:     final.State,
		DeferredXfers: final.Xfers,
		Yield:         final.Yield,
		GasUsed:       gasConsumed,
		Provisions:    final.Provisions,
		ResultCode:    result.Code,
	}
}

// collapse selects the dimension that defines the observable post-state:
// imY on PANIC/OOG, imX otherwise.
func collapse(pair *ImplicationsPair, code pvm.ResultCode) *Implications {
	if code == pvm.ResultPanic || code == pvm.ResultOOG {
		return pair.Y
	}
	return pair.X
}

// applyDeferredTransfers applies every input destined for serviceID by
// incrementing its balance. If there are none, the original state is
// returned unchanged, reference equality preserved.
func applyDeferredTransfers(st *state.PartialState, serviceID common.ServiceID, inputs []Input) *state.PartialState {
	var matching []DeferredTransfer
	for _, in := range inputs {
		if in.Transfer != nil && in.Transfer.Dest == serviceID {
			matching = append(matching, *in.Transfer)
		}
	}
	if len(matching) == 0 {
		return st
	}
	out := st.Clone()
	acc := out.Accounts[serviceID]
	for _, xfer := range matching {
		acc.Balance += xfer.Amount
	}
	return out
}

// encodeAccumulateArgs builds the accumulate argument blob:
// u32_le(timeslot) || u32_le(serviceId) || encode_natural(len(inputs)).
func encodeAccumulateArgs(timeslot uint32, serviceID common.ServiceID, numInputs int) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], timeslot)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(serviceID))
	out := append([]byte{}, buf[:]...)
	return append(out, encodeNatural(uint64(numInputs))...)
}

// encodeNatural is the canonical compact length prefix used throughout
// the wider codec: single-byte values under 128 encode directly with the
// top bit clear; larger values use a length-prefixed big-endian tail.
func encodeNatural(v uint64) []byte {
	if v < 0x80 {
		return []byte{byte(v)}
	}
	var tail []byte
	for v > 0 {
		tail = append([]byte{byte(v)}, tail...)
		v >>= 8
	}
	return append([]byte{0x80 | byte(len(tail))}, tail...)
}

func sliceToHash(b []byte) common.Hash {
	if len(b) > common.HashLength {
		b = b[:common.HashLength]
	}
	return common.BytesToHash(b)
}
