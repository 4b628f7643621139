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

package pvm

import "errors"

// ErrMalformedBlob is returned by Decode when the code blob is structurally
// inconsistent (bitmask length mismatch, truncated jump table, ...). This is
// a load-time error surfaced to the caller before any execution begins; it
// is not one of the interpreter's terminal result codes.
var ErrMalformedBlob = errors.New("pvm: malformed code blob")

// ResultCode classifies how an interpreter run terminated. Values match
// the external encoding of the accumulate output (HALT=0, PANIC=1,
// FAULT=2, HOST=3, OOG=4) so accumulate can write a ResultCode straight
// into its result blob with no remapping step.
type ResultCode int

const (
	// ResultHalt is a normal, successful termination (HALT).
	ResultHalt ResultCode = iota
	// ResultPanic is an unrecoverable program fault: invalid jump target,
	// reserved-memory access, unknown dynamic jump, TRAP. Division edge
	// cases are NOT panics; they produce defined values.
	ResultPanic
	// ResultFault is a memory access violation; VM.FaultAddr carries the
	// offending address.
	ResultFault
	// ResultHost means the interpreter hit ECALLI and is suspended pending a
	// host dispatch.
	ResultHost
	// ResultOOG is gas exhaustion.
	ResultOOG
	// resultNone is a sentinel for "not yet terminated", deliberately placed
	// after the wire-encoded values so it never collides with one.
	resultNone
)

func (r ResultCode) String() string {
	switch r {
	case resultNone:
		return "NONE"
	case ResultHalt:
		return "HALT"
	case ResultPanic:
		return "PANIC"
	case ResultFault:
		return "FAULT"
	case ResultHost:
		return "HOST"
	case ResultOOG:
		return "OOG"
	default:
		return "UNKNOWN"
	}
}
