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

// Package common holds the small value types shared across the pvm, state,
// invocation, and accumulate packages: content-addressed 32-byte digests and
// service identifiers.
package common

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the length in bytes of a digest (service codehash, storage
// key, preimage hash, yield commitment, ...).
const HashLength = 32

// Hash represents a 32-byte digest produced by the module's hashing
// collaborator (Blake2b for protocol-defined derivations).
type Hash [HashLength]byte

// BytesToHash sets h to the value of b, cropping from the left if b is
// longer than a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash interprets s as a hex string and returns the resulting Hash.
func HexToHash(s string) Hash {
	return BytesToHash(FromHex(s))
}

// SetBytes sets the hash to the value of b, cropping from the left if b is
// larger than HashLength.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Bytes returns the byte representation of h.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the 0x-prefixed hex representation of h.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is the all-zero digest.
func (h Hash) IsZero() bool { return h == Hash{} }

// ServiceID identifies a service account within a PartialState. Service IDs
// below MIN_PUBLIC_INDEX are reserved (see package params); NEW allocates
// public IDs at or above that floor.
type ServiceID uint32

// String renders a ServiceID as a decimal string for logging.
func (s ServiceID) String() string { return fmt.Sprintf("%d", uint32(s)) }

// FromHex decodes a hex string (with or without a leading "0x") into
// bytes. Malformed input yields nil; the callers are fixture loaders, not
// consensus paths, and prefer a nil over an error return.
func FromHex(s string) []byte {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
