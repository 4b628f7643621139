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

package state

import (
	"bytes"
	"testing"

	"github.com/probechain/pvm/common"
)

func TestStorageSetGetDelete(t *testing.T) {
	a := NewServiceAccount(common.Hash{}, 10)

	a.Set([]byte("k1"), []byte("hello"))
	if a.Items != 1 || a.Octets != 5 {
		t.Fatalf("items=%d octets=%d, want 1,5", a.Items, a.Octets)
	}

	v, ok := a.Get([]byte("k1"))
	if !ok || !bytes.Equal(v, []byte("hello")) {
		t.Fatalf("Get = %q, %v, want hello, true", v, ok)
	}

	a.Set([]byte("k1"), []byte("hi"))
	if a.Items != 1 || a.Octets != 2 {
		t.Fatalf("after overwrite: items=%d octets=%d, want 1,2", a.Items, a.Octets)
	}

	a.Set([]byte("k1"), nil)
	if a.Items != 0 || a.Octets != 0 {
		t.Fatalf("after delete: items=%d octets=%d, want 0,0", a.Items, a.Octets)
	}
	if _, ok := a.Get([]byte("k1")); ok {
		t.Fatal("Get after delete found a value")
	}
}

func TestPreimageAndRequestKeysDoNotCollide(t *testing.T) {
	a := NewServiceAccount(common.Hash{}, 0)
	hash := common.BytesToHash([]byte("content-hash"))

	a.ProvidePreimage(hash, []byte("blob"))
	a.SetRequest(hash, PreimageRequest{Length: 4, Slots: []uint32{100}})

	blob, ok := a.Preimage(hash)
	if !ok || !bytes.Equal(blob, []byte("blob")) {
		t.Fatalf("Preimage = %q, %v, want blob, true", blob, ok)
	}
	req, ok := a.Request(hash, 4)
	if !ok || req.Length != 4 || len(req.Slots) != 1 || req.Slots[0] != 100 {
		t.Fatalf("Request = %+v, %v, unexpected", req, ok)
	}
}

func TestRequestEncodeDecodeRoundTrip(t *testing.T) {
	a := NewServiceAccount(common.Hash{}, 0)
	hash := common.BytesToHash([]byte("h"))

	req := PreimageRequest{Length: 77, Slots: []uint32{1, 2, 3}}
	a.SetRequest(hash, req)

	got, ok := a.Request(hash, 77)
	if !ok {
		t.Fatal("Request not found")
	}
	if got.Length != req.Length || len(got.Slots) != len(req.Slots) {
		t.Fatalf("got %+v, want %+v", got, req)
	}
	for i := range req.Slots {
		if got.Slots[i] != req.Slots[i] {
			t.Fatalf("slot %d = %d, want %d", i, got.Slots[i], req.Slots[i])
		}
	}
}

func TestRequestWireFormat(t *testing.T) {
	a := NewServiceAccount(common.Hash{}, 0)
	hash := common.BytesToHash([]byte("h"))

	a.SetRequest(hash, PreimageRequest{Length: 77, Slots: []uint32{1, 2, 3}})

	// The value is a LE u32 slot count followed by that many LE u32
	// timeslots; the preimage length is folded into the key, never the
	// value.
	raw := a.storage[requestKey(hash, 77)]
	want := []byte{
		3, 0, 0, 0,
		1, 0, 0, 0,
		2, 0, 0, 0,
		3, 0, 0, 0,
	}
	if !bytes.Equal(raw, want) {
		t.Fatalf("stored value = %x, want %x", raw, want)
	}

	a.SetRequest(hash, PreimageRequest{Length: 77})
	raw = a.storage[requestKey(hash, 77)]
	if !bytes.Equal(raw, []byte{0, 0, 0, 0}) {
		t.Fatalf("empty history stored as %x, want 00000000", raw)
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := NewServiceAccount(common.Hash{}, 0)
	a.Set([]byte("k"), []byte("v"))

	clone := a.Clone()
	clone.Set([]byte("k"), []byte("changed"))

	orig, _ := a.Get([]byte("k"))
	if !bytes.Equal(orig, []byte("v")) {
		t.Fatalf("mutating clone changed original: %q", orig)
	}
}

func TestDeposit(t *testing.T) {
	a := NewServiceAccount(common.Hash{}, 0)
	a.Items = 2
	a.Octets = 50
	want := 100 + 10*2 + 1*50
	if got := a.Deposit(); got != uint64(want) {
		t.Fatalf("Deposit() = %d, want %d", got, want)
	}

	a.Gratis = uint64(want)
	if got := a.Deposit(); got != 0 {
		t.Fatalf("Deposit() with full gratis = %d, want 0", got)
	}
}
