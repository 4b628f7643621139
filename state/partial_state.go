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
	"github.com/probechain/pvm/common"
	"github.com/probechain/pvm/params"
	"github.com/probechain/pvm/validator"
)

// PartialState is the slice of global chain state one accumulate
// invocation reads and mutates: the service accounts, the staging
// validator set, the per-core authorization queues and their assigner
// services, and the three privileged service roles.
type PartialState struct {
	Accounts map[common.ServiceID]*ServiceAccount

	Staging []validator.Record

	// AuthQueues holds params.AuthQueueSize authorizer hashes per core;
	// Assigners holds the service allowed to ASSIGN each core's queue.
	AuthQueues [][]common.Hash
	Assigners  []common.ServiceID

	Manager    common.ServiceID
	Delegator  common.ServiceID
	Registrar  common.ServiceID

	// AlwaysAcc is the BLESS-maintained set of services that accumulate
	// every block regardless of whether they received a work report,
	// mapped to the minimum gas each is guaranteed.
	AlwaysAcc map[common.ServiceID]uint64

	// ExpungePeriod is the minimum age before FORGET may drop an
	// unavailable preimage. It lives on PartialState rather than a
	// recompiled constant so test harnesses can override it per fixture.
	ExpungePeriod uint32
}

// New returns an empty PartialState with numCores authorization queues and
// the production expunge period.
func New(numCores int) *PartialState {
	queues := make([][]common.Hash, numCores)
	return &PartialState{
		Accounts:      make(map[common.ServiceID]*ServiceAccount),
		AuthQueues:    queues,
		Assigners:     make([]common.ServiceID, numCores),
		AlwaysAcc:     make(map[common.ServiceID]uint64),
		ExpungePeriod: params.ExpungePeriodProduction,
	}
}

// Clone deep-copies the entire state. This is the operation accumulate's
// CHECKPOINT builds its (imX, imY) dimension pair from: every field that
// downstream mutation could touch is copied, not aliased, so imX and imY
// can diverge without either corrupting the other.
func (s *PartialState) Clone() *PartialState {
	out := &PartialState{
		Manager:       s.Manager,
		Delegator:     s.Delegator,
		Registrar:     s.Registrar,
		ExpungePeriod: s.ExpungePeriod,
	}

	out.Accounts = make(map[common.ServiceID]*ServiceAccount, len(s.Accounts))
	for id, acc := range s.Accounts {
		out.Accounts[id] = acc.Clone()
	}

	out.Staging = make([]validator.Record, len(s.Staging))
	copy(out.Staging, s.Staging)

	out.AuthQueues = make([][]common.Hash, len(s.AuthQueues))
	for i, q := range s.AuthQueues {
		cp := make([]common.Hash, len(q))
		copy(cp, q)
		out.AuthQueues[i] = cp
	}

	out.Assigners = make([]common.ServiceID, len(s.Assigners))
	copy(out.Assigners, s.Assigners)

	out.AlwaysAcc = make(map[common.ServiceID]uint64, len(s.AlwaysAcc))
	for id, gas := range s.AlwaysAcc {
		out.AlwaysAcc[id] = gas
	}

	return out
}
