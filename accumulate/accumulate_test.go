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
	"testing"

	"github.com/probechain/pvm/common"
	"github.com/probechain/pvm/params"
	"github.com/probechain/pvm/pvm"
	"github.com/probechain/pvm/state"
)

// asm is a minimal bytecode builder, deliberately duplicated (not imported)
// from pvm's and invocation's own test helpers: this package only depends
// on pvm's exported surface, the same boundary its production code
// observes.
type asm struct{ code []byte }

func (a *asm) regByte(regs ...int) {
	for i := 0; i < len(regs); i += 2 {
		hi := byte(regs[i]) << 4
		var lo byte
		if i+1 < len(regs) {
			lo = byte(regs[i+1])
		}
		a.code = append(a.code, hi|lo)
	}
}

func (a *asm) imm(v uint64, n int) {
	a.code = append(a.code, byte(n))
	for i := 0; i < n; i++ {
		a.code = append(a.code, byte(v))
		v >>= 8
	}
}

func (a *asm) noArgs(op pvm.Opcode) {
	a.code = append(a.code, byte(op))
}

func (a *asm) loadImm(rD int, v uint64, n int) {
	a.code = append(a.code, byte(pvm.OpLoadImm))
	a.regByte(rD)
	a.imm(v, n)
}

func (a *asm) ecalli(id uint64) {
	a.code = append(a.code, byte(pvm.OpEcalli))
	a.imm(id, 1)
}

func (a *asm) blob() []byte {
	bm := make([]bool, len(a.code))
	for i := range bm {
		bm[i] = true
	}
	return buildBlob(a.code, bm)
}

func buildBlob(code []byte, bitmask []bool) []byte {
	var out []byte
	u32 := make([]byte, 4)
	out = append(out, u32...) // zero jump table entries
	out = append(out, 4)      // entry size
	binary.LittleEndian.PutUint32(u32, uint32(len(code)))
	out = append(out, u32...)
	out = append(out, code...)
	bmBytes := make([]byte, (len(bitmask)+7)/8)
	for i, set := range bitmask {
		if set {
			bmBytes[i/8] |= 1 << uint(i%8)
		}
	}
	out = append(out, bmBytes...)
	return out
}

const (
	callerID common.ServiceID = 1
	destID   common.ServiceID = 2
)

// argZoneBase mirrors invocation.argZoneBase (unexported): the fixed high
// address Ψ_M maps read-write and where the accumulate argument blob
// lands, the only address range guaranteed mapped for a hand-built test
// program to point a memory-reading host call at.
const argZoneBase = uint64(params.AddressSpaceSize) - uint64(params.InitZoneSize)

func newFixtureState() *state.PartialState {
	st := state.New(2)
	st.ExpungePeriod = 32

	caller := state.NewServiceAccount(common.Hash{0xC0}, 0)
	caller.Balance = 1_000_000
	st.Accounts[callerID] = caller

	dest := state.NewServiceAccount(common.Hash{0xD0}, 0)
	dest.Balance = 500
	dest.MinMemoGas = 10
	st.Accounts[destID] = dest

	return st
}

// TestInvokeEmptyCodeReturnsBad checks that a non-empty
// codehash resolving to a zero-length blob fails structurally, before the
// size check and before any gas is spent.
func TestInvokeEmptyCodeReturnsBad(t *testing.T) {
	st := newFixtureState()
	store := MapPreimageStore{common.Hash{0xC0}: {}}

	res := Invoke(st, store, 1, callerID, 1000, nil, 2, [32]byte{})
	if !res.IsErr || res.Err != ErrBad {
		t.Fatalf("got IsErr=%v Err=%v, want BAD", res.IsErr, res.Err)
	}
	if res.GasUsed != 0 {
		t.Fatalf("GasUsed = %d, want 0", res.GasUsed)
	}
}

// TestInvokeOversizedCodeReturnsBig checks the code-size ceiling.
func TestInvokeOversizedCodeReturnsBig(t *testing.T) {
	st := newFixtureState()
	oversized := make([]byte, params.MaxServiceCodeSize+1)
	store := MapPreimageStore{common.Hash{0xC0}: oversized}

	res := Invoke(st, store, 1, callerID, 1000, nil, 2, [32]byte{})
	if !res.IsErr || res.Err != ErrBig {
		t.Fatalf("got IsErr=%v Err=%v, want BIG", res.IsErr, res.Err)
	}
	if res.GasUsed != 0 {
		t.Fatalf("GasUsed = %d, want 0", res.GasUsed)
	}
}

// TestCheckpointRollback runs CHECKPOINT, then a successful
// TRANSFER, then a TRAP. The collapsed post-state must equal the
// checkpoint snapshot: caller's balance unchanged and imX's queued
// transfer discarded.
func TestCheckpointRollback(t *testing.T) {
	st := newFixtureState()
	originalBalance := st.Accounts[callerID].Balance

	var a asm
	a.noArgs(pvm.OpTrap) // bytes 0..4: never executed, just padding up to
	a.noArgs(pvm.OpTrap) // the fixed entry offset the real ABI reserves.
	a.noArgs(pvm.OpTrap)
	a.noArgs(pvm.OpTrap)
	a.noArgs(pvm.OpTrap)

	a.ecalli(hcCheckpoint)
	a.loadImm(7, uint64(destID), 4)
	a.loadImm(8, 50, 8)
	a.loadImm(9, 1000, 8)
	a.loadImm(10, argZoneBase, 8) // memo pointer: inside the args zone, mapped RW
	a.ecalli(hcTransfer)
	a.noArgs(pvm.OpTrap)

	code := a.blob()
	store := MapPreimageStore{common.Hash{0xC0}: code}

	res := Invoke(st, store, 1, callerID, 100_000, nil, 2, [32]byte{})
	if res.IsErr {
		t.Fatalf("unexpected structural error: %v", res.Err)
	}
	if res.ResultCode != pvm.ResultPanic {
		t.Fatalf("ResultCode = %v, want PANIC", res.ResultCode)
	}
	if len(res.DeferredXfers) != 0 {
		t.Fatalf("DeferredXfers = %v, want none (rolled back)", res.DeferredXfers)
	}
	gotBalance := res.PostState.Accounts[callerID].Balance
	if gotBalance != originalBalance {
		t.Fatalf("caller balance = %d, want unchanged %d", gotBalance, originalBalance)
	}
}

// TestDeriveNextFreeIDDeterministic checks that two
// independent derivations over identical inputs must agree, and a
// colliding candidate must be advanced by the probing rule rather than
// returned as-is.
func TestDeriveNextFreeIDDeterministic(t *testing.T) {
	entropy := [32]byte{}
	accounts := map[common.ServiceID]*state.ServiceAccount{}

	got1 := deriveNextFreeID(1, entropy, 1, accounts)
	got2 := deriveNextFreeID(1, entropy, 1, accounts)
	if got1 != got2 {
		t.Fatalf("derivation not deterministic: %d != %d", got1, got2)
	}
	if got1 < params.MinPublicIndex {
		t.Fatalf("nextFreeId = %d, want >= MinPublicIndex %d", got1, params.MinPublicIndex)
	}

	accounts[common.ServiceID(got1)] = state.NewServiceAccount(common.Hash{}, 0)
	advanced := deriveNextFreeID(1, entropy, 1, accounts)
	if advanced == got1 {
		t.Fatalf("colliding id %d was not advanced by the probing rule", got1)
	}
	if advanced != probeNext(got1) {
		t.Fatalf("advanced = %d, want probeNext(%d) = %d", advanced, got1, probeNext(got1))
	}
}

// TestHostForgetTransitions drives hostForget through the three
// interesting request histories at timeslot 1000 with a 32-slot expunge
// period.
func TestHostForgetTransitions(t *testing.T) {
	hash := common.Hash{0xAB}
	length := uint32(7)

	hashPtr := uint64(params.ReservedMemoryStart)

	setup := func(slots []uint32) (*ImplicationsPair, *pvm.Memory) {
		st := newFixtureState()
		acc := st.Accounts[callerID]
		acc.SetRequest(hash, state.PreimageRequest{Length: length, Slots: slots})
		im := NewImplications(callerID, st, 0)
		pair := &ImplicationsPair{X: im, Y: im.Clone()}

		mem := pvm.NewMemory()
		mem.MapRange(hashPtr, 4096, pvm.AccessReadWrite)
		_ = mem.Write(hashPtr, hash.Bytes())
		return pair, mem
	}

	t.Run("single slot ages to pair", func(t *testing.T) {
		pair, mem := setup([]uint32{500})
		var reg pvm.Registers
		reg.Set(7, hashPtr)
		reg.Set(8, uint64(length))

		hostForget(pair, 1000, &reg, mem)

		if reg.Get(7) != ErrOK {
			t.Fatalf("r7 = %#x, want OK", reg.Get(7))
		}
		req, ok := pair.X.State.Accounts[callerID].Request(hash, length)
		if !ok {
			t.Fatal("request deleted, want [500,1000]")
		}
		if len(req.Slots) != 2 || req.Slots[0] != 500 || req.Slots[1] != 1000 {
			t.Fatalf("slots = %v, want [500 1000]", req.Slots)
		}
	})

	t.Run("expired middle slot collapses the triple", func(t *testing.T) {
		pair, mem := setup([]uint32{500, 967, 600})
		var reg pvm.Registers
		reg.Set(7, hashPtr)
		reg.Set(8, uint64(length))

		hostForget(pair, 1000, &reg, mem)

		if reg.Get(7) != ErrOK {
			t.Fatalf("r7 = %#x, want OK", reg.Get(7))
		}
		req, ok := pair.X.State.Accounts[callerID].Request(hash, length)
		if !ok {
			t.Fatal("request deleted, want [600,1000]")
		}
		if len(req.Slots) != 2 || req.Slots[0] != 600 || req.Slots[1] != 1000 {
			t.Fatalf("slots = %v, want [600 1000]", req.Slots)
		}
	})

	t.Run("not-yet-expired middle slot rejects", func(t *testing.T) {
		pair, mem := setup([]uint32{500, 968, 600})
		var reg pvm.Registers
		reg.Set(7, hashPtr)
		reg.Set(8, uint64(length))

		hostForget(pair, 1000, &reg, mem)

		if reg.Get(7) != ErrHUH {
			t.Fatalf("r7 = %#x, want HUH", reg.Get(7))
		}
		req, ok := pair.X.State.Accounts[callerID].Request(hash, length)
		if !ok || len(req.Slots) != 3 {
			t.Fatalf("request mutated, want unchanged [500,968,600], got %v (ok=%v)", req.Slots, ok)
		}
	})
}

// TestHostNewBalanceConservation checks that NEW moves balance rather
// than minting it: caller.balance' + newService.balance = caller.balance.
func TestHostNewBalanceConservation(t *testing.T) {
	st := newFixtureState()
	caller := st.Accounts[callerID]
	before := caller.Balance

	im := NewImplications(callerID, st, uint32(params.MinPublicIndex)+100)
	pair := &ImplicationsPair{X: im, Y: im.Clone()}

	ptr := uint64(params.ReservedMemoryStart)
	mem := pvm.NewMemory()
	mem.MapRange(ptr, 4096, pvm.AccessReadWrite)
	codeHash := common.Hash{0xEE}
	_ = mem.Write(ptr, codeHash.Bytes())

	var reg pvm.Registers
	reg.Set(7, ptr) // o: codehash ptr
	reg.Set(8, 10)  // l: initial storage length
	reg.Set(9, 0)   // minAccGas
	reg.Set(10, 0)  // minMemoGas
	reg.Set(11, 0)  // gratis
	reg.Set(12, 0)  // desiredId (caller isn't registrar, so nextFreeId wins)

	fault := hostNew(pair, 1, &reg, mem)
	if fault {
		t.Fatal("hostNew faulted unexpectedly")
	}
	if reg.Get(7) == ErrCASH || reg.Get(7) == ErrFULL || reg.Get(7) == ErrHUH {
		t.Fatalf("r7 = %#x, want a new service id", reg.Get(7))
	}

	newID := common.ServiceID(uint32(reg.Get(7)))
	newAcc, ok := pair.X.State.Accounts[newID]
	if !ok {
		t.Fatalf("no account created at id %d", newID)
	}

	after := pair.X.State.Accounts[callerID].Balance
	if after+newAcc.Balance != before {
		t.Fatalf("balance not conserved: %d + %d != %d", after, newAcc.Balance, before)
	}
}

// TestCollapseSelectsDimension exercises the glossary's "Collapse"
// definition directly: imY on PANIC/OOG, imX otherwise.
func TestCollapseSelectsDimension(t *testing.T) {
	x := NewImplications(callerID, state.New(1), 0)
	y := NewImplications(callerID, state.New(1), 0)
	pair := &ImplicationsPair{X: x, Y: y}

	if got := collapse(pair, pvm.ResultHalt); got != x {
		t.Fatal("HALT should collapse to imX")
	}
	if got := collapse(pair, pvm.ResultPanic); got != y {
		t.Fatal("PANIC should collapse to imY")
	}
	if got := collapse(pair, pvm.ResultOOG); got != y {
		t.Fatal("OOG should collapse to imY")
	}
}
