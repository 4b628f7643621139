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
	lru "github.com/hashicorp/golang-lru"

	"github.com/probechain/pvm/common"
)

// PreimageStore resolves a service's codehash to its code blob. The
// backing preimage/storage layer is an external collaborator; accumulate
// only depends on this small interface and assumes every preimage it
// needs is resolved before invocation.
type PreimageStore interface {
	Code(hash common.Hash) ([]byte, bool)
}

// CachedPreimageStore wraps a PreimageStore with a bounded LRU of code
// blobs, so repeated Ψ_A invocations against the same service don't hit
// the backing store on every call.
type CachedPreimageStore struct {
	backing PreimageStore
	cache   *lru.Cache
}

// NewCachedPreimageStore wraps backing with an LRU of the given capacity.
func NewCachedPreimageStore(backing PreimageStore, capacity int) *CachedPreimageStore {
	cache, err := lru.New(capacity)
	if err != nil {
		// lru.New only errors for capacity <= 0; callers always pass a
		// positive constant, so this is unreachable in practice but we
		// still fail closed rather than dereference a nil cache.
		cache, _ = lru.New(1)
	}
	return &CachedPreimageStore{backing: backing, cache: cache}
}

// Code returns the cached code blob for hash, falling back to (and
// populating from) the backing store on a miss.
func (c *CachedPreimageStore) Code(hash common.Hash) ([]byte, bool) {
	if v, ok := c.cache.Get(hash); ok {
		return v.([]byte), true
	}
	code, ok := c.backing.Code(hash)
	if !ok {
		return nil, false
	}
	c.cache.Add(hash, code)
	return code, true
}

// MapPreimageStore is a trivial in-memory PreimageStore, used by tests and
// by cmd/pvmrun fixtures.
type MapPreimageStore map[common.Hash][]byte

// Code implements PreimageStore.
func (m MapPreimageStore) Code(hash common.Hash) ([]byte, bool) {
	code, ok := m[hash]
	return code, ok
}
