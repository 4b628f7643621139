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
	"github.com/probechain/pvm/crypto"
	"github.com/probechain/pvm/params"
	"github.com/probechain/pvm/pvm"
	"github.com/probechain/pvm/state"
	"github.com/probechain/pvm/validator"
)

// Host-call IDs 14..26, the accumulate-specific table. Id 21 has no
// assigned function; it dispatches as an unknown id (r7=WHAT), same as
// anything outside 0..26.
const (
	hcBless = iota + 14
	hcAssign
	hcDesignate
	hcCheckpoint
	hcNew
	hcUpgrade
	hcTransfer
	hcReserved21
	hcQuery
	hcSolicit
	hcForget
	hcYield
	hcProvide
)

// dispatchAccumulate handles host-call ids 14..26 against the live
// dimension im.X. CHECKPOINT is the only one that touches im.Y. Every
// host function reports register-addressed memory faults via its
// returned flag instead of writing an error code, so a faulting call
// terminates as PANIC with r7 untouched — the caller program observes
// only the fact of termination.
func dispatchAccumulate(id uint64, im *ImplicationsPair, gas *int64, timeslot uint32, numCores int, reg *pvm.Registers, mem *pvm.Memory) (handled bool, terminal bool, code pvm.ResultCode) {
	switch id {
	case hcBless:
		return true, hostBless(im, numCores, reg, mem), pvm.ResultPanic
	case hcAssign:
		return true, hostAssign(im, numCores, reg, mem), pvm.ResultPanic
	case hcDesignate:
		return true, hostDesignate(im, reg, mem), pvm.ResultPanic
	case hcCheckpoint:
		im.Y = im.X.Clone()
		reg.Set(7, uint64(*gas))
		return true, false, 0
	case hcNew:
		return true, hostNew(im, timeslot, reg, mem), pvm.ResultPanic
	case hcUpgrade:
		return true, hostUpgrade(im, reg, mem), pvm.ResultPanic
	case hcTransfer:
		return true, hostTransfer(im, reg, mem), pvm.ResultPanic
	case hcQuery:
		return true, hostQuery(im, reg, mem), pvm.ResultPanic
	case hcSolicit:
		return true, hostSolicit(im, timeslot, reg, mem), pvm.ResultPanic
	case hcForget:
		return true, hostForget(im, timeslot, reg, mem), pvm.ResultPanic
	case hcYield:
		return true, hostYield(im, reg, mem), pvm.ResultPanic
	case hcProvide:
		return true, hostProvide(im, reg, mem), pvm.ResultPanic
	default:
		return false, false, 0
	}
}

func callerAccount(im *ImplicationsPair) *state.ServiceAccount {
	return im.X.State.Accounts[im.X.ID]
}

// hostBless implements BLESS (#14). Returns true on a memory fault (the
// caller should PANIC without touching r7).
func hostBless(im *ImplicationsPair, numCores int, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	m, a, v, r, o, n := reg.Get(7), reg.Get(8), reg.Get(9), reg.Get(10), reg.Get(11), reg.Get(12)
	if m > 0xFFFFFFFF || v > 0xFFFFFFFF || r > 0xFFFFFFFF {
		reg.Set(7, ErrWHO)
		return false
	}
	assignerBytes, err := mem.Read(a, uint64(numCores)*4)
	if err != nil {
		return true
	}
	alwaysBytes, err := mem.Read(o, n*12)
	if err != nil {
		return true
	}
	assigners := make([]common.ServiceID, numCores)
	for i := 0; i < numCores; i++ {
		assigners[i] = common.ServiceID(binary.LittleEndian.Uint32(assignerBytes[i*4:]))
	}
	always := make(map[common.ServiceID]uint64, n)
	for i := uint64(0); i < n; i++ {
		rec := alwaysBytes[i*12:]
		sid := common.ServiceID(binary.LittleEndian.Uint32(rec[:4]))
		gas := binary.LittleEndian.Uint64(rec[4:12])
		always[sid] = gas
	}
	im.X.State.Manager = common.ServiceID(uint32(m))
	im.X.State.Delegator = common.ServiceID(uint32(v))
	im.X.State.Registrar = common.ServiceID(uint32(r))
	im.X.State.Assigners = assigners
	im.X.State.AlwaysAcc = always
	reg.Set(7, ErrOK)
	return false
}

// hostAssign implements ASSIGN (#15).
func hostAssign(im *ImplicationsPair, numCores int, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	core, q, dest := reg.Get(7), reg.Get(8), reg.Get(9)
	if core >= uint64(numCores) {
		reg.Set(7, ErrCORE)
		return false
	}
	if im.X.State.Assigners[core] != im.X.ID {
		reg.Set(7, ErrHUH)
		return false
	}
	if dest > 0xFFFFFFFF {
		reg.Set(7, ErrWHO)
		return false
	}
	queueBytes, err := mem.Read(q, uint64(params.AuthQueueSize)*common.HashLength)
	if err != nil {
		return true
	}
	queue := make([]common.Hash, params.AuthQueueSize)
	for i := range queue {
		queue[i] = common.BytesToHash(queueBytes[i*common.HashLength : (i+1)*common.HashLength])
	}
	im.X.State.AuthQueues[core] = queue
	im.X.State.Assigners[core] = common.ServiceID(uint32(dest))
	reg.Set(7, ErrOK)
	return false
}

// hostDesignate implements DESIGNATE (#16).
func hostDesignate(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	if im.X.ID != im.X.State.Delegator {
		reg.Set(7, ErrHUH)
		return false
	}
	size := uint64(params.MaxStagingValidators) * uint64(params.ValidatorRecordSize)
	raw, err := mem.Read(reg.Get(7), size)
	if err != nil {
		return true
	}
	set, derr := validator.DecodeSet(raw)
	if derr != nil {
		return true
	}
	im.X.State.Staging = set
	reg.Set(7, ErrOK)
	return false
}

// hostNew implements NEW (#18).
func hostNew(im *ImplicationsPair, now uint32, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	o, l, minAccGas, minMemoGas, gratis, desiredID :=
		reg.Get(7), reg.Get(8), reg.Get(9), reg.Get(10), reg.Get(11), reg.Get(12)

	if gratis != 0 && im.X.ID != im.X.State.Manager {
		reg.Set(7, ErrHUH)
		return false
	}
	codeHashBytes, err := mem.Read(o, common.HashLength)
	if err != nil {
		return true
	}

	const items = 2
	octets := 81 + l
	required := uint64(params.CBaseDeposit) + uint64(params.CItemDeposit)*items + uint64(params.CByteDeposit)*octets
	var minBalance uint64
	if required > gratis {
		minBalance = required - gratis
	}

	caller := callerAccount(im)
	if caller.Balance < minBalance {
		reg.Set(7, ErrCASH)
		return false
	}

	var id common.ServiceID
	if im.X.State.Registrar == im.X.ID && desiredID < params.MinPublicIndex {
		id = common.ServiceID(uint32(desiredID))
	} else {
		id = common.ServiceID(im.X.NextFreeID)
	}
	if _, exists := im.X.State.Accounts[id]; exists {
		reg.Set(7, ErrFULL)
		return false
	}

	caller.Balance -= minBalance
	acc := state.NewServiceAccount(common.BytesToHash(codeHashBytes), now)
	acc.Balance = minBalance
	acc.MinAccGas = minAccGas
	acc.MinMemoGas = minMemoGas
	acc.Gratis = gratis
	acc.Items = items
	acc.Octets = octets
	acc.Parent = im.X.ID
	im.X.State.Accounts[id] = acc

	if id == common.ServiceID(im.X.NextFreeID) {
		im.X.NextFreeID = advancePastCollision(im.X.NextFreeID, im.X.State.Accounts)
	}
	reg.Set(7, uint64(uint32(id)))
	return false
}

// advancePastCollision re-applies the probing rule starting from a
// newly-consumed candidate, so NextFreeID always names a free slot.
func advancePastCollision(id uint32, accounts map[common.ServiceID]*state.ServiceAccount) uint32 {
	id = probeNext(id)
	for {
		if _, exists := accounts[common.ServiceID(id)]; !exists {
			return id
		}
		id = probeNext(id)
	}
}

// hostUpgrade implements UPGRADE (#19).
func hostUpgrade(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	codeHashBytes, err := mem.Read(reg.Get(7), common.HashLength)
	if err != nil {
		return true
	}
	caller := callerAccount(im)
	caller.CodeHash = common.BytesToHash(codeHashBytes)
	caller.MinAccGas = reg.Get(8)
	caller.MinMemoGas = reg.Get(9)
	reg.Set(7, ErrOK)
	return false
}

// hostTransfer implements TRANSFER (#20). The dispatcher charges the
// additional gasLimit cost only after a successful queue (r7=OK); the
// error paths cost the flat host-call fee alone.
func hostTransfer(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	dest, amount, gasLimit, o := reg.Get(7), reg.Get(8), reg.Get(9), reg.Get(10)

	destAcc, exists := im.X.State.Accounts[common.ServiceID(uint32(dest))]
	if !exists {
		reg.Set(7, ErrWHO)
		return false
	}
	if gasLimit < destAcc.MinMemoGas {
		reg.Set(7, ErrLOW)
		return false
	}
	caller := callerAccount(im)
	if caller.Balance < amount || caller.Balance-amount < caller.Deposit() {
		reg.Set(7, ErrCASH)
		return false
	}
	memo, err := mem.Read(o, 128)
	if err != nil {
		return true
	}
	var xfer DeferredTransfer
	xfer.Source = im.X.ID
	xfer.Dest = common.ServiceID(uint32(dest))
	xfer.Amount = amount
	xfer.Gas = gasLimit
	copy(xfer.Memo[:], memo)
	im.X.Xfers = append(im.X.Xfers, xfer)
	caller.Balance -= amount
	reg.Set(7, ErrOK)
	return false
}

// hostQuery implements QUERY (#22): r7=hash ptr, r8=preimage length. The
// hash read is always a full 32-byte digest regardless of the preimage
// length in r8. Encodes the request's timeslot history into (r7, r8):
// r7 becomes the slot count (or NONE if no request exists), r8 packs the
// first and last 32-bit timeslots (lo in bits 0-31, hi in bits 32-63).
func hostQuery(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	hashBytes, err := mem.Read(reg.Get(7), common.HashLength)
	if err != nil {
		return true
	}
	hash := common.BytesToHash(hashBytes)
	length := uint32(reg.Get(8))

	caller := callerAccount(im)
	req, ok := caller.Request(hash, length)
	if !ok {
		reg.Set(7, ErrNONE)
		return false
	}
	reg.Set(7, uint64(len(req.Slots)))
	reg.Set(8, packSlots(req.Slots))
	return false
}

func packSlots(slots []uint32) uint64 {
	var lo, hi uint32
	if len(slots) > 0 {
		lo = slots[0]
	}
	if len(slots) > 1 {
		hi = slots[len(slots)-1]
	}
	return uint64(lo) | uint64(hi)<<32
}

// hostSolicit implements SOLICIT (#23): r7=hash ptr, r8=preimage length.
// A fresh request reserves footprint for the request record plus the
// preimage it anticipates; re-soliciting an unavailable [x,y] history
// appends the current timeslot without changing the footprint.
func hostSolicit(im *ImplicationsPair, now uint32, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	hashBytes, err := mem.Read(reg.Get(7), common.HashLength)
	if err != nil {
		return true
	}
	hash := common.BytesToHash(hashBytes)
	length := uint32(reg.Get(8))

	caller := callerAccount(im)
	req, existed := caller.Request(hash, length)

	var next state.PreimageRequest
	switch {
	case !existed:
		next = state.PreimageRequest{Length: length}
	case len(req.Slots) == 2:
		next = state.PreimageRequest{Length: length, Slots: []uint32{req.Slots[0], req.Slots[1], now}}
	default:
		reg.Set(7, ErrHUH)
		return false
	}

	caller.SetRequest(hash, next)
	if !existed {
		caller.Items += 2
		caller.Octets += 81 + uint64(length)
	}
	if caller.Deposit() > caller.Balance {
		if existed {
			caller.SetRequest(hash, req)
		} else {
			caller.DeleteRequest(hash, length)
			caller.Items -= 2
			caller.Octets -= 81 + uint64(length)
		}
		reg.Set(7, ErrFULL)
		return false
	}
	reg.Set(7, ErrOK)
	return false
}

// hostForget implements FORGET (#24): r7=hash ptr, r8=preimage length.
// An empty history or an unavailable one old enough to expunge drops the
// request and its preimage outright; [x] ages to [x,now]; an expired
// [x,y,w] collapses to [w,now]; everything else (including a request
// that was never solicited) is HUH.
func hostForget(im *ImplicationsPair, now uint32, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	hashBytes, err := mem.Read(reg.Get(7), common.HashLength)
	if err != nil {
		return true
	}
	hash := common.BytesToHash(hashBytes)
	length := uint32(reg.Get(8))

	caller := callerAccount(im)
	req, existed := caller.Request(hash, length)
	if !existed {
		reg.Set(7, ErrHUH)
		return false
	}
	period := im.X.State.ExpungePeriod
	expired := func(y uint32) bool { return now >= period && y < now-period }

	switch {
	case len(req.Slots) == 0, len(req.Slots) == 2 && expired(req.Slots[1]):
		caller.DeleteRequest(hash, length)
		caller.ForgetPreimage(hash)
		caller.Items -= 2
		caller.Octets -= 81 + uint64(length)
	case len(req.Slots) == 1:
		caller.SetRequest(hash, state.PreimageRequest{Length: length, Slots: []uint32{req.Slots[0], now}})
	case len(req.Slots) == 3 && expired(req.Slots[1]):
		caller.SetRequest(hash, state.PreimageRequest{Length: length, Slots: []uint32{req.Slots[2], now}})
	default:
		reg.Set(7, ErrHUH)
		return false
	}
	reg.Set(7, ErrOK)
	return false
}

// hostYield implements YIELD (#25): r7=32-byte pointer.
func hostYield(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	b, err := mem.Read(reg.Get(7), common.HashLength)
	if err != nil {
		return true
	}
	h := common.BytesToHash(b)
	im.X.Yield = &h
	return false
}

// hostProvide implements PROVIDE (#26): r7=target service (2^64-1 = self),
// r8=blob ptr, r9=blob len. The destination must hold a still-empty
// request for the blob's content hash, and the same (service, blob) pair
// may be provided at most once per invocation.
func hostProvide(im *ImplicationsPair, reg *pvm.Registers, mem *pvm.Memory) (fault bool) {
	s, o, z := reg.Get(7), reg.Get(8), reg.Get(9)
	targetID := im.X.ID
	if s != ErrNONE {
		targetID = common.ServiceID(uint32(s))
	}
	target, ok := im.X.State.Accounts[targetID]
	if !ok {
		reg.Set(7, ErrWHO)
		return false
	}
	blob, err := mem.Read(o, z)
	if err != nil {
		return true
	}
	hash := crypto.Keccak256(blob)
	req, ok := target.Request(hash, uint32(z))
	if !ok || len(req.Slots) != 0 {
		reg.Set(7, ErrHUH)
		return false
	}
	key := provisionKey{Service: targetID, Data: string(blob)}
	if im.X.Provisions.Contains(key) {
		reg.Set(7, ErrHUH)
		return false
	}
	im.X.Provisions.Add(key)
	reg.Set(7, ErrOK)
	return false
}
