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

// Package crypto wraps the two hash primitives the VM core and accumulate
// invocation need. Blake2b drives the deterministic nextFreeId derivation;
// Keccak256 content-addresses preimage blobs for PROVIDE. Everything else
// — signature verification, the block import hashing pipeline — is an
// external collaborator out of this module's scope.
package crypto

import (
	"github.com/probechain/pvm/common"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Blake2b256 returns the 32-byte Blake2b-256 digest of the concatenation
// of data.
func Blake2b256(data ...[]byte) common.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on a non-nil key of the wrong size; nil
		// key is always accepted, so this is unreachable.
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Keccak256 returns the 32-byte Keccak-256 digest of the concatenation of
// data, used to content-address preimage blobs.
func Keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}
