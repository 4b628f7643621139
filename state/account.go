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

// Package state models one PartialState: the service accounts an
// accumulate invocation reads and mutates, their key-value storage, and
// the staging validator set / authorization queues that come along for
// the ride. Everything is held in memory; durable storage is the concern
// of whatever layer loads and persists a PartialState around an
// invocation.
package state

import (
	"github.com/probechain/pvm/common"
	"github.com/probechain/pvm/crypto"
	"github.com/probechain/pvm/params"
)

// ServiceAccount is one account in a PartialState.
type ServiceAccount struct {
	CodeHash common.Hash
	Balance  uint64

	MinAccGas  uint64
	MinMemoGas uint64

	Octets uint64 // total storage footprint in bytes
	Items  uint64 // total storage entry count
	Gratis uint64 // free-storage allowance granted by the manager

	Created uint32 // timeslot the account was created
	LastAcc uint32 // timeslot of its last accumulation

	Parent common.ServiceID

	storage map[common.Hash][]byte
}

// NewServiceAccount returns an empty account for codeHash, created at
// timeslot now.
func NewServiceAccount(codeHash common.Hash, now uint32) *ServiceAccount {
	return &ServiceAccount{
		CodeHash: codeHash,
		Created:  now,
		LastAcc:  now,
		storage:  make(map[common.Hash][]byte),
	}
}

// Clone deep-copies a, including its storage map — the unit checkpoint
// rollback in the accumulate package operates on.
func (a *ServiceAccount) Clone() *ServiceAccount {
	if a == nil {
		return nil
	}
	clone := *a
	clone.storage = make(map[common.Hash][]byte, len(a.storage))
	for k, v := range a.storage {
		cp := make([]byte, len(v))
		copy(cp, v)
		clone.storage[k] = cp
	}
	return &clone
}

// Deposit is the minimum balance a's footprint requires it to hold: a
// flat per-account base plus a per-item and per-byte charge, net of any
// gratis allowance.
func (a *ServiceAccount) Deposit() uint64 {
	required := params.CBaseDeposit + params.CItemDeposit*a.Items + params.CByteDeposit*a.Octets
	if a.Gratis >= required {
		return 0
	}
	return required - a.Gratis
}

// Three logical key classes share one storage map, each under its own
// derived key prefix so a raw storage key, a preimage hash, and a preimage
// request can never collide.

func storageKey(rawKey []byte) common.Hash {
	return crypto.Blake2b256([]byte("storage"), rawKey)
}

func preimageKey(hash common.Hash) common.Hash {
	return crypto.Blake2b256([]byte("preimage"), hash[:])
}

func requestKey(hash common.Hash, length uint32) common.Hash {
	var lb [4]byte
	lb[0] = byte(length)
	lb[1] = byte(length >> 8)
	lb[2] = byte(length >> 16)
	lb[3] = byte(length >> 24)
	return crypto.Blake2b256([]byte("request"), hash[:], lb[:])
}

// Get reads a raw storage entry.
func (a *ServiceAccount) Get(rawKey []byte) ([]byte, bool) {
	v, ok := a.storage[storageKey(rawKey)]
	return v, ok
}

// Set writes a raw storage entry, updating the footprint counters. A nil
// value deletes the entry, mirroring WRITE's host-call contract.
func (a *ServiceAccount) Set(rawKey, value []byte) {
	k := storageKey(rawKey)
	old, existed := a.storage[k]
	if value == nil {
		if existed {
			a.Items--
			a.Octets -= uint64(len(old))
			delete(a.storage, k)
		}
		return
	}
	if existed {
		a.Octets += uint64(len(value)) - uint64(len(old))
	} else {
		a.Items++
		a.Octets += uint64(len(value))
	}
	a.storage[k] = value
}

// put writes or deletes an entry without touching Items/Octets. Preimage
// blobs and request records use it because their footprint charges follow
// the host-call rules (NEW seeds items=2/octets=81+len, SOLICIT and
// FORGET adjust by the same amounts), not the raw encoded value sizes.
func (a *ServiceAccount) put(k common.Hash, value []byte) {
	if value == nil {
		delete(a.storage, k)
		return
	}
	a.storage[k] = value
}

// Preimage reads a solicited preimage blob by its content hash.
func (a *ServiceAccount) Preimage(hash common.Hash) ([]byte, bool) {
	v, ok := a.storage[preimageKey(hash)]
	return v, ok
}

// ProvidePreimage stores a preimage blob under its content hash.
func (a *ServiceAccount) ProvidePreimage(hash common.Hash, blob []byte) {
	a.put(preimageKey(hash), blob)
}

// ForgetPreimage removes a preimage blob.
func (a *ServiceAccount) ForgetPreimage(hash common.Hash) {
	a.put(preimageKey(hash), nil)
}

// PreimageRequest is the 0-3 timeslot history kept per solicited
// preimage: empty means solicited-but-never-provided, one entry means
// available since that slot, two means provided and then made unavailable
// at the second slot, and three means available again since the third
// slot (SOLICIT appends it to a two-slot history). FORGET turns an
// expired three-slot history [x, y, w] into [w, now].
type PreimageRequest struct {
	Length uint32
	Slots  []uint32
}

// Request reads a preimage request record. Length is part of the key
// derivation, not the stored value, so the caller-supplied length is
// carried back on the decoded record.
func (a *ServiceAccount) Request(hash common.Hash, length uint32) (PreimageRequest, bool) {
	raw, ok := a.storage[requestKey(hash, length)]
	if !ok {
		return PreimageRequest{}, false
	}
	return decodeRequest(raw, length), true
}

// SetRequest writes a preimage request record.
func (a *ServiceAccount) SetRequest(hash common.Hash, req PreimageRequest) {
	a.put(requestKey(hash, req.Length), encodeRequest(req))
}

// DeleteRequest removes a preimage request record entirely (the terminal
// transition of FORGET's state table).
func (a *ServiceAccount) DeleteRequest(hash common.Hash, length uint32) {
	a.put(requestKey(hash, length), nil)
}

// The persisted request value is a little-endian u32 slot count followed
// by that many little-endian u32 timeslots. The preimage length lives in
// the key derivation only and never appears in the value.

func encodeRequest(r PreimageRequest) []byte {
	n := uint32(len(r.Slots))
	out := make([]byte, 4, 4+4*len(r.Slots))
	out[0] = byte(n)
	out[1] = byte(n >> 8)
	out[2] = byte(n >> 16)
	out[3] = byte(n >> 24)
	for _, s := range r.Slots {
		out = append(out, byte(s), byte(s>>8), byte(s>>16), byte(s>>24))
	}
	return out
}

// decodeRequest parses a stored request value. A value whose count word
// disagrees with its length, or whose count exceeds the 3-slot maximum,
// indicates an implementation or storage bug: it panics rather than
// limping on with a made-up history.
func decodeRequest(raw []byte, length uint32) PreimageRequest {
	if len(raw) < 4 {
		panic("state: corrupted preimage request value")
	}
	n := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	if n > 3 || len(raw) != int(4+4*n) {
		panic("state: corrupted preimage request value")
	}
	var slots []uint32
	for i := 4; i+4 <= len(raw); i += 4 {
		s := uint32(raw[i]) | uint32(raw[i+1])<<8 | uint32(raw[i+2])<<16 | uint32(raw[i+3])<<24
		slots = append(slots, s)
	}
	return PreimageRequest{Length: length, Slots: slots}
}
