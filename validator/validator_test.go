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

package validator

import (
	"bytes"
	"testing"

	"github.com/probechain/pvm/params"
)

func sampleRecord(fill byte) Record {
	var r Record
	for i := range r.Bandersnatch {
		r.Bandersnatch[i] = fill
	}
	for i := range r.Ed25519 {
		r.Ed25519[i] = fill + 1
	}
	for i := range r.BLS {
		r.BLS[i] = fill + 2
	}
	for i := range r.Metadata {
		r.Metadata[i] = fill + 3
	}
	return r
}

func TestRecordRoundTrip(t *testing.T) {
	r := sampleRecord(7)
	enc := r.Encode()
	if len(enc) != params.ValidatorRecordSize {
		t.Fatalf("Encode() length = %d, want %d", len(enc), params.ValidatorRecordSize)
	}

	got, rest, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("remaining = %d bytes, want 0", len(rest))
	}
	if got != r {
		t.Fatalf("Decode() = %+v, want %+v", got, r)
	}
}

func TestDecodeWithRemainder(t *testing.T) {
	enc := sampleRecord(1).Encode()
	enc = append(enc, 0xAA, 0xBB, 0xCC)

	_, rest, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(rest, []byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("rest = %x, want aabbcc", rest)
	}
}

func TestDecodeShortFails(t *testing.T) {
	if _, _, err := Decode(make([]byte, params.ValidatorRecordSize-1)); err == nil {
		t.Fatal("Decode of short input succeeded, want error")
	}
}

func TestSetRoundTrip(t *testing.T) {
	set := []Record{sampleRecord(1), sampleRecord(2), sampleRecord(3)}
	enc := EncodeSet(set)

	got, err := DecodeSet(enc)
	if err != nil {
		t.Fatalf("DecodeSet: %v", err)
	}
	if len(got) != len(set) {
		t.Fatalf("DecodeSet returned %d records, want %d", len(got), len(set))
	}
	for i := range set {
		if got[i] != set[i] {
			t.Fatalf("record %d mismatch", i)
		}
	}
}

func TestDecodeSetMisalignedFails(t *testing.T) {
	enc := EncodeSet([]Record{sampleRecord(1)})
	enc = enc[:len(enc)-1]
	if _, err := DecodeSet(enc); err == nil {
		t.Fatal("DecodeSet of misaligned input succeeded, want error")
	}
}
