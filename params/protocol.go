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

// Package params collects the consensus-critical constants that parameterize
// the VM, the memory layout, and the accumulate invocation. These are
// compile-time constants rather than a loaded configuration file: they are
// part of the protocol, not a deployment knob.
package params

// Memory layout.
const (
	// PageSize is the granularity of RAM access-control (bytes per page).
	PageSize = 4096
	// ReservedMemoryStart is the first legally addressable byte; anything
	// below it PANICs regardless of page permissions.
	ReservedMemoryStart = 65_536
	// InitZoneSize is the size in bytes of the high-address argument/stack
	// zone laid out by Ψ_M.
	InitZoneSize = 65_536
	// DynamicAddressAlignment is the granularity SBRK grows the heap by.
	DynamicAddressAlignment = 2
	// InitInputSize is the minimum ReadWrite residency an implementation
	// must support before SBRK is asked to grow the heap further.
	InitInputSize = 16_777_216
	// MaxHeapAddress is the ceiling past which SBRK reports failure (returns
	// the prior break unmodified) rather than growing.
	MaxHeapAddress = 1<<31 - 1
	// AddressSpaceSize is the size of the logical address space (2^32).
	AddressSpaceSize = 1 << 32
)

// JumpTableAlignment is the unit dynamic jump indices (JUMP_IND,
// LOAD_IMM_JUMP_IND) are expressed in: an index must be a multiple of it,
// so index 2 addresses the second jump table entry and index 1 PANICs.
const JumpTableAlignment = 2

// Service identifiers and code limits.
const (
	// MinPublicIndex is the floor at which NEW and nextFreeId allocate
	// service IDs; values below it are reserved for privileged services.
	MinPublicIndex = 65_536
	// MaxServiceCodeSize rejects accumulate invocations whose service code
	// exceeds this many bytes with AccumResult BIG.
	MaxServiceCodeSize = 4_000_000
	// MaxAuthCodeSize bounds is-authorized code blobs.
	MaxAuthCodeSize = 64_000
)

// Gas.
const (
	PackageAuthGas = 50_000_000
	PackageRefGas  = 5_000_000_000
	// HostCallGas is the flat cost F_acc charges before dispatching any of
	// the 27 host functions.
	HostCallGas = 10
)

// Validator set and authorization queue.
const (
	// ValidatorRecordSize is the wire size of one staging-set validator
	// record: bandersnatch[32] || ed25519[32] || bls[144] || metadata[128].
	ValidatorRecordSize = 32 + 32 + 144 + 128
	// MaxStagingValidators bounds the staging validator set.
	MaxStagingValidators = 1023
	// AuthQueueSize is the number of authorizer-queue slots per core.
	AuthQueueSize = 80
)

// Storage deposit accounting (NEW/SOLICIT/FORGET).
const (
	CBaseDeposit = 100
	CItemDeposit = 10
	CByteDeposit = 1
)

// ExpungePeriodProduction and ExpungePeriodTest are the two expunge
// periods in use; callers select one via a PartialState-level override
// rather than a recompiled constant, since test fixtures use the shorter
// period.
const (
	ExpungePeriodProduction = 19_200
	ExpungePeriodTest       = 32
)
