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
	"github.com/probechain/pvm/state"
)

// deriveNextFreeID implements deterministic service-ID generation: hash
// (serviceId, entropy, timeslot), reduce the leading 4 bytes into the
// public-ID range, then probe past any existing account.
func deriveNextFreeID(serviceID common.ServiceID, entropy [32]byte, timeslot uint32, accounts map[common.ServiceID]*state.ServiceAccount) uint32 {
	var sidBuf, tsBuf [4]byte
	binary.LittleEndian.PutUint32(sidBuf[:], uint32(serviceID))
	binary.LittleEndian.PutUint32(tsBuf[:], timeslot)

	h := crypto.Blake2b256(sidBuf[:], entropy[:], tsBuf[:])
	d := binary.BigEndian.Uint32(h[:4])

	const span = (uint64(1) << 32) - params.MinPublicIndex - (1 << 8)
	id := uint32(uint64(d)%span) + params.MinPublicIndex

	for {
		if _, exists := accounts[common.ServiceID(id)]; !exists {
			return id
		}
		id = probeNext(id)
	}
}

// probeNext advances a colliding candidate id:
// ((id - MinPublicIndex + 1) mod (2^32 - 2^8 - MinPublicIndex)) + MinPublicIndex.
func probeNext(id uint32) uint32 {
	const span = (uint64(1) << 32) - (1 << 8) - params.MinPublicIndex
	rebased := (uint64(id) - params.MinPublicIndex + 1) % span
	return uint32(rebased) + params.MinPublicIndex
}
