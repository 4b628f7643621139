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

// Package validator encodes and decodes the fixed-width validator record
// used by the staging validator set and by DESIGNATE wire data.
package validator

import (
	"fmt"

	"github.com/probechain/pvm/params"
)

const (
	bandersnatchLen = 32
	ed25519Len      = 32
	blsLen          = 144
	metadataLen     = 128
)

// Record is one staging validator set entry: bandersnatch || ed25519 || bls
// || metadata, 336 bytes total (params.ValidatorRecordSize).
type Record struct {
	Bandersnatch [bandersnatchLen]byte
	Ed25519      [ed25519Len]byte
	BLS          [blsLen]byte
	Metadata     [metadataLen]byte
}

// Encode writes the 336-byte wire form of r.
func (r Record) Encode() []byte {
	out := make([]byte, 0, params.ValidatorRecordSize)
	out = append(out, r.Bandersnatch[:]...)
	out = append(out, r.Ed25519[:]...)
	out = append(out, r.BLS[:]...)
	out = append(out, r.Metadata[:]...)
	return out
}

// Decode parses one Record from the front of b, returning the unconsumed
// remainder. It fails if b is shorter than a full record.
func Decode(b []byte) (Record, []byte, error) {
	if len(b) < params.ValidatorRecordSize {
		return Record{}, nil, fmt.Errorf("validator: short record: have %d bytes, want %d", len(b), params.ValidatorRecordSize)
	}
	var r Record
	off := 0
	copy(r.Bandersnatch[:], b[off:off+bandersnatchLen])
	off += bandersnatchLen
	copy(r.Ed25519[:], b[off:off+ed25519Len])
	off += ed25519Len
	copy(r.BLS[:], b[off:off+blsLen])
	off += blsLen
	copy(r.Metadata[:], b[off:off+metadataLen])
	off += metadataLen
	return r, b[off:], nil
}

// DecodeSet parses every validator record packed end to end in b (the
// wire form of a full staging set), failing if the total length is not an
// exact multiple of the record size.
func DecodeSet(b []byte) ([]Record, error) {
	if len(b)%params.ValidatorRecordSize != 0 {
		return nil, fmt.Errorf("validator: set length %d is not a multiple of %d", len(b), params.ValidatorRecordSize)
	}
	n := len(b) / params.ValidatorRecordSize
	if n > params.MaxStagingValidators {
		return nil, fmt.Errorf("validator: set has %d entries, exceeds max %d", n, params.MaxStagingValidators)
	}
	out := make([]Record, 0, n)
	rest := b
	for len(rest) > 0 {
		var r Record
		var err error
		r, rest, err = Decode(rest)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// EncodeSet packs a staging set back into its wire form.
func EncodeSet(set []Record) []byte {
	out := make([]byte, 0, len(set)*params.ValidatorRecordSize)
	for _, r := range set {
		out = append(out, r.Encode()...)
	}
	return out
}
