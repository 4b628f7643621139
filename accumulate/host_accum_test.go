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

	"github.com/stretchr/testify/require"

	"github.com/probechain/pvm/common"
	"github.com/probechain/pvm/crypto"
	"github.com/probechain/pvm/params"
	"github.com/probechain/pvm/pvm"
	"github.com/probechain/pvm/state"
)

// memBase is the lowest legally addressable byte; host-call pointer
// fixtures live just above it.
const memBase = uint64(params.ReservedMemoryStart)

func newHostFixture(t *testing.T, mapped uint64) (*ImplicationsPair, *pvm.Memory) {
	t.Helper()
	st := newFixtureState()
	im := NewImplications(callerID, st, uint32(params.MinPublicIndex)+500)
	pair := &ImplicationsPair{X: im, Y: im.Clone()}

	mem := pvm.NewMemory()
	mem.MapRange(memBase, mapped, pvm.AccessReadWrite)
	return pair, mem
}

func TestHostBless(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	numCores := 2

	assignerBytes := make([]byte, numCores*4)
	binary.LittleEndian.PutUint32(assignerBytes[0:], 11)
	binary.LittleEndian.PutUint32(assignerBytes[4:], 12)
	require.NoError(t, mem.Write(memBase, assignerBytes))

	accer := make([]byte, 12)
	binary.LittleEndian.PutUint32(accer[0:], 9)
	binary.LittleEndian.PutUint64(accer[4:], 1234)
	require.NoError(t, mem.Write(memBase+64, accer))

	var reg pvm.Registers
	reg.Set(7, 5)           // manager
	reg.Set(8, memBase)     // assigner array ptr
	reg.Set(9, 6)           // delegator
	reg.Set(10, 7)          // registrar
	reg.Set(11, memBase+64) // always-accers ptr
	reg.Set(12, 1)          // always-accer count

	fault := hostBless(pair, numCores, &reg, mem)
	require.False(t, fault)
	require.Equal(t, ErrOK, reg.Get(7))

	st := pair.X.State
	require.Equal(t, common.ServiceID(5), st.Manager)
	require.Equal(t, common.ServiceID(6), st.Delegator)
	require.Equal(t, common.ServiceID(7), st.Registrar)
	require.Equal(t, []common.ServiceID{11, 12}, st.Assigners)
	require.Equal(t, map[common.ServiceID]uint64{9: 1234}, st.AlwaysAcc)
}

func TestHostBlessFaultLeavesR7(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)

	var reg pvm.Registers
	reg.Set(7, 5)
	reg.Set(8, 0) // below the reserved floor: unreadable

	fault := hostBless(pair, 2, &reg, mem)
	require.True(t, fault)
	require.Equal(t, uint64(5), reg.Get(7), "a faulting host call must not touch r7")
}

func TestHostAssign(t *testing.T) {
	queueSize := uint64(params.AuthQueueSize) * common.HashLength
	pair, mem := newHostFixture(t, queueSize+4096)
	pair.X.State.Assigners[1] = callerID

	queue := make([]byte, queueSize)
	queue[0] = 0xAA
	require.NoError(t, mem.Write(memBase, queue))

	var reg pvm.Registers
	reg.Set(7, 1)       // core index
	reg.Set(8, memBase) // queue ptr
	reg.Set(9, uint64(destID))

	fault := hostAssign(pair, 2, &reg, mem)
	require.False(t, fault)
	require.Equal(t, ErrOK, reg.Get(7))
	require.Equal(t, destID, pair.X.State.Assigners[1])
	require.Len(t, pair.X.State.AuthQueues[1], params.AuthQueueSize)
	require.Equal(t, byte(0xAA), pair.X.State.AuthQueues[1][0][0])
}

func TestHostAssignErrors(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)

	var reg pvm.Registers
	reg.Set(7, 5) // out of range core
	require.False(t, hostAssign(pair, 2, &reg, mem))
	require.Equal(t, ErrCORE, reg.Get(7))

	reg.Set(7, 0) // core 0's assigner is the zero service, not the caller
	require.False(t, hostAssign(pair, 2, &reg, mem))
	require.Equal(t, ErrHUH, reg.Get(7))
}

func TestHostDesignate(t *testing.T) {
	size := uint64(params.MaxStagingValidators) * uint64(params.ValidatorRecordSize)
	pair, mem := newHostFixture(t, size+4096)
	pair.X.State.Delegator = callerID

	raw := make([]byte, size)
	raw[0] = 0xAB // first record's bandersnatch key, first byte
	require.NoError(t, mem.Write(memBase, raw))

	var reg pvm.Registers
	reg.Set(7, memBase)

	fault := hostDesignate(pair, &reg, mem)
	require.False(t, fault)
	require.Equal(t, ErrOK, reg.Get(7))
	require.Len(t, pair.X.State.Staging, params.MaxStagingValidators)
	require.Equal(t, byte(0xAB), pair.X.State.Staging[0].Bandersnatch[0])
}

func TestHostDesignateRequiresDelegator(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	pair.X.State.Delegator = destID

	var reg pvm.Registers
	reg.Set(7, memBase)
	require.False(t, hostDesignate(pair, &reg, mem))
	require.Equal(t, ErrHUH, reg.Get(7))
}

func TestHostUpgrade(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	newHash := common.Hash{0x42}
	require.NoError(t, mem.Write(memBase, newHash.Bytes()))

	var reg pvm.Registers
	reg.Set(7, memBase)
	reg.Set(8, 77)
	reg.Set(9, 88)

	fault := hostUpgrade(pair, &reg, mem)
	require.False(t, fault)
	require.Equal(t, ErrOK, reg.Get(7))

	caller := pair.X.State.Accounts[callerID]
	require.Equal(t, newHash, caller.CodeHash)
	require.Equal(t, uint64(77), caller.MinAccGas)
	require.Equal(t, uint64(88), caller.MinMemoGas)
}

func TestHostTransfer(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	memo := make([]byte, 128)
	memo[0] = 0x5A
	require.NoError(t, mem.Write(memBase, memo))

	var reg pvm.Registers
	reg.Set(7, uint64(destID))
	reg.Set(8, 50)   // amount
	reg.Set(9, 1000) // gas limit, above dest's MinMemoGas of 10
	reg.Set(10, memBase)

	before := pair.X.State.Accounts[callerID].Balance
	fault := hostTransfer(pair, &reg, mem)
	require.False(t, fault)
	require.Equal(t, ErrOK, reg.Get(7))
	require.Equal(t, before-50, pair.X.State.Accounts[callerID].Balance)

	require.Len(t, pair.X.Xfers, 1)
	xfer := pair.X.Xfers[0]
	require.Equal(t, callerID, xfer.Source)
	require.Equal(t, destID, xfer.Dest)
	require.Equal(t, uint64(50), xfer.Amount)
	require.Equal(t, uint64(1000), xfer.Gas)
	require.Equal(t, byte(0x5A), xfer.Memo[0])
}

func TestHostTransferErrors(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)

	var reg pvm.Registers
	reg.Set(7, 999) // no such account
	reg.Set(8, 50)
	reg.Set(9, 1000)
	reg.Set(10, memBase)
	require.False(t, hostTransfer(pair, &reg, mem))
	require.Equal(t, ErrWHO, reg.Get(7))

	reg.Set(7, uint64(destID))
	reg.Set(9, 5) // below dest's MinMemoGas of 10
	require.False(t, hostTransfer(pair, &reg, mem))
	require.Equal(t, ErrLOW, reg.Get(7))

	reg.Set(7, uint64(destID))
	reg.Set(8, ^uint64(0)) // more than any balance
	reg.Set(9, 1000)
	require.False(t, hostTransfer(pair, &reg, mem))
	require.Equal(t, ErrCASH, reg.Get(7))

	require.Empty(t, pair.X.Xfers)
}

func TestHostQueryEncoding(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	hash := common.Hash{0x11}
	require.NoError(t, mem.Write(memBase, hash.Bytes()))

	caller := pair.X.State.Accounts[callerID]
	caller.SetRequest(hash, state.PreimageRequest{Length: 9, Slots: []uint32{100, 200}})

	var reg pvm.Registers
	reg.Set(7, memBase)
	reg.Set(8, 9)

	fault := hostQuery(pair, &reg, mem)
	require.False(t, fault)
	require.Equal(t, uint64(2), reg.Get(7))
	require.Equal(t, uint64(100)|uint64(200)<<32, reg.Get(8))
}

func TestHostQueryMissingIsNone(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	hash := common.Hash{0x11}
	require.NoError(t, mem.Write(memBase, hash.Bytes()))

	var reg pvm.Registers
	reg.Set(7, memBase)
	reg.Set(8, 9)

	require.False(t, hostQuery(pair, &reg, mem))
	require.Equal(t, ErrNONE, reg.Get(7))
}

func TestHostSolicitReservesFootprint(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	hash := common.Hash{0x33}
	require.NoError(t, mem.Write(memBase, hash.Bytes()))

	var reg pvm.Registers
	reg.Set(7, memBase)
	reg.Set(8, 20)

	fault := hostSolicit(pair, 1000, &reg, mem)
	require.False(t, fault)
	require.Equal(t, ErrOK, reg.Get(7))

	caller := pair.X.State.Accounts[callerID]
	require.Equal(t, uint64(2), caller.Items)
	require.Equal(t, uint64(81+20), caller.Octets)

	req, ok := caller.Request(hash, 20)
	require.True(t, ok)
	require.Empty(t, req.Slots)
}

func TestHostSolicitFullRollsBack(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	hash := common.Hash{0x33}
	require.NoError(t, mem.Write(memBase, hash.Bytes()))
	pair.X.State.Accounts[callerID].Balance = 0

	var reg pvm.Registers
	reg.Set(7, memBase)
	reg.Set(8, 20)

	require.False(t, hostSolicit(pair, 1000, &reg, mem))
	require.Equal(t, ErrFULL, reg.Get(7))

	caller := pair.X.State.Accounts[callerID]
	require.Zero(t, caller.Items)
	require.Zero(t, caller.Octets)
	_, ok := caller.Request(hash, 20)
	require.False(t, ok)
}

func TestHostProvide(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	blob := []byte("preimage-bytes")
	hash := crypto.Keccak256(blob)
	require.NoError(t, mem.Write(memBase, blob))

	pair.X.State.Accounts[callerID].SetRequest(hash, state.PreimageRequest{Length: uint32(len(blob))})

	var reg pvm.Registers
	reg.Set(7, ErrNONE) // self
	reg.Set(8, memBase)
	reg.Set(9, uint64(len(blob)))

	fault := hostProvide(pair, &reg, mem)
	require.False(t, fault)
	require.Equal(t, ErrOK, reg.Get(7))
	require.True(t, pair.X.Provisions.Contains(provisionKey{Service: callerID, Data: string(blob)}))

	// The same (service, blob) pair may only be provided once.
	reg.Set(7, ErrNONE)
	require.False(t, hostProvide(pair, &reg, mem))
	require.Equal(t, ErrHUH, reg.Get(7))
}

func TestHostProvideErrors(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	blob := []byte("nobody asked")
	require.NoError(t, mem.Write(memBase, blob))

	var reg pvm.Registers
	reg.Set(7, 999) // no such service
	reg.Set(8, memBase)
	reg.Set(9, uint64(len(blob)))
	require.False(t, hostProvide(pair, &reg, mem))
	require.Equal(t, ErrWHO, reg.Get(7))

	reg.Set(7, ErrNONE) // self, but no pending request for this blob
	require.False(t, hostProvide(pair, &reg, mem))
	require.Equal(t, ErrHUH, reg.Get(7))
	require.Zero(t, pair.X.Provisions.Cardinality())
}

func TestHostWriteReturnsPriorLength(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	require.NoError(t, mem.Write(memBase, []byte("key")))
	require.NoError(t, mem.Write(memBase+64, []byte("value-1")))

	var reg pvm.Registers
	reg.Set(7, memBase) // key ptr
	reg.Set(8, 3)       // key len
	reg.Set(9, memBase+64)
	reg.Set(10, 7)

	require.False(t, hostWrite(pair, &reg, mem))
	require.Equal(t, ErrNONE, reg.Get(7), "first write has no prior value")

	require.NoError(t, mem.Write(memBase+64, []byte("v2")))
	reg.Set(7, memBase)
	reg.Set(10, 2)
	require.False(t, hostWrite(pair, &reg, mem))
	require.Equal(t, uint64(7), reg.Get(7), "second write reports the prior length")

	val, ok := pair.X.State.Accounts[callerID].Get([]byte("key"))
	require.True(t, ok)
	require.Equal(t, []byte("v2"), val)
}

func TestHostWriteLowRollsBack(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	pair.X.State.Accounts[callerID].Balance = 0
	require.NoError(t, mem.Write(memBase, []byte("key")))
	require.NoError(t, mem.Write(memBase+64, []byte("value")))

	var reg pvm.Registers
	reg.Set(7, memBase)
	reg.Set(8, 3)
	reg.Set(9, memBase+64)
	reg.Set(10, 5)

	require.False(t, hostWrite(pair, &reg, mem))
	require.Equal(t, ErrLOW, reg.Get(7))

	_, ok := pair.X.State.Accounts[callerID].Get([]byte("key"))
	require.False(t, ok, "an under-collateralized write must not stick")
}

func TestCheckpointSnapshotsAndReportsGas(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	gas := int64(4321)

	var reg pvm.Registers
	handled, terminal, _ := dispatchAccumulate(hcCheckpoint, pair, &gas, 1000, 2, &reg, mem)
	require.True(t, handled)
	require.False(t, terminal)
	require.Equal(t, uint64(4321), reg.Get(7))

	// Mutations to imX after the checkpoint must not reach imY.
	pair.X.State.Accounts[callerID].Balance = 1
	require.Equal(t, uint64(1_000_000), pair.Y.State.Accounts[callerID].Balance)
}

func TestDispatchGeneralGas(t *testing.T) {
	pair, mem := newHostFixture(t, 4096)
	gas := int64(555)

	var reg pvm.Registers
	handled, terminal, _ := dispatchGeneral(hcGas, pair, &gas, &reg, mem)
	require.True(t, handled)
	require.False(t, terminal)
	require.Equal(t, uint64(555), reg.Get(7))
}
