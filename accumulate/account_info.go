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

	"github.com/probechain/pvm/state"
)

// accountInfoSize is the fixed wire width INFO writes:
// codehash[32] || balance[8] || minAccGas[8] || minMemoGas[8] || octets[8]
// || items[8] || gratis[8] || created[4] || lastAcc[4] || parent[4].
const accountInfoSize = 32 + 8*6 + 4*3

// encodeAccountInfo packs the persisted ServiceAccount fields into the
// fixed-width snapshot INFO exposes to a service program.
func encodeAccountInfo(acc *state.ServiceAccount) []byte {
	buf := make([]byte, accountInfoSize)
	off := 0
	copy(buf[off:], acc.CodeHash.Bytes())
	off += 32
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[off:], v)
		off += 8
	}
	putU64(acc.Balance)
	putU64(acc.MinAccGas)
	putU64(acc.MinMemoGas)
	putU64(acc.Octets)
	putU64(acc.Items)
	putU64(acc.Gratis)
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[off:], v)
		off += 4
	}
	putU32(acc.Created)
	putU32(acc.LastAcc)
	putU32(uint32(acc.Parent))
	return buf
}
