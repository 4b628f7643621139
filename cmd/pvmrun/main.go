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

// Command pvmrun loads a code blob and a JSON input fixture and runs either
// the marshalling invocation (Ψ_M) or the accumulate invocation (Ψ_A)
// against it, printing the terminal result code and gas used.
//
// Usage:
//
//	pvmrun [flags] <code.bin>
//
// Flags:
//
//	-mode <marshal|accumulate>  Which invocation to run (default: marshal)
//	-fixture <file.json>        Input fixture (default: stdin)
//	-entry <pc>                 Entry PC for -mode marshal (default: 0)
//	-gas <n>                    Initial gas budget (default: 1000000)
//	-verbose                    Log host-call dispatch at debug level
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/probechain/pvm/accumulate"
	"github.com/probechain/pvm/common"
	"github.com/probechain/pvm/invocation"
	"github.com/probechain/pvm/pvm"
	"github.com/probechain/pvm/pvmlog"
	"github.com/probechain/pvm/state"
)

// fixture is the JSON shape pvmrun reads for both modes. Marshal mode only
// consults ArgsHex; accumulate mode consults the rest.
type fixture struct {
	ArgsHex    string            `json:"argsHex"`
	ServiceID  uint32            `json:"serviceId"`
	Timeslot   uint32            `json:"timeslot"`
	NumCores   int               `json:"numCores"`
	EntropyHex string            `json:"entropyHex"`
	Accounts   []accountFixture  `json:"accounts"`
}

type accountFixture struct {
	ID          uint32 `json:"id"`
	CodeHashHex string `json:"codeHashHex"`
	Balance     uint64 `json:"balance"`
	MinAccGas   uint64 `json:"minAccGas"`
	MinMemoGas  uint64 `json:"minMemoGas"`
}

func main() {
	var (
		mode     = flag.String("mode", "marshal", "Invocation to run: marshal or accumulate")
		fixPath  = flag.String("fixture", "", "Input fixture JSON file (default: stdin)")
		entry    = flag.Uint("entry", 0, "Entry PC for -mode marshal")
		gas      = flag.Int64("gas", 1_000_000, "Initial gas budget")
		verbose  = flag.Bool("verbose", false, "Log host-call dispatch at debug level")
	)
	flag.Parse()

	if *verbose {
		pvmlog.SetLevel(logrus.DebugLevel)
		invocation.Trace = func(pc uint32, op pvm.Opcode) {
			pvmlog.Debug("pvm: exec", "pc", pc, "op", op.String())
		}
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: pvmrun [flags] <code.bin>")
		os.Exit(1)
	}
	code, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx, err := readFixture(*fixPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		pvmlog.Debug("pvmrun: loaded fixture", "fixture", spew.Sdump(fx))
	}

	switch *mode {
	case "marshal":
		runMarshal(code, uint32(*entry), *gas, fx)
	case "accumulate":
		runAccumulate(code, *gas, fx)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode: %s\n", *mode)
		os.Exit(1)
	}
}

func readFixture(path string) (fixture, error) {
	var fx fixture
	var raw []byte
	var err error
	if path == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fx, err
	}
	if len(raw) == 0 {
		return fx, nil
	}
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fx, fmt.Errorf("decode fixture: %w", err)
	}
	return fx, nil
}

// runMarshal runs Ψ_M with a no-op dispatcher: every host call is reported
// as WHAT and resumed, since pvmrun has no chain state to back real host
// semantics in this mode (that's what -mode accumulate is for).
func runMarshal(code []byte, entryPC uint32, gas int64, fx fixture) {
	args, err := hex.DecodeString(fx.ArgsHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: bad argsHex: %v\n", err)
		os.Exit(1)
	}

	dispatch := func(hostCall uint64, gasPtr *int64, reg *pvm.Registers, mem *pvm.Memory, ctx interface{}) (bool, pvm.ResultCode) {
		pvmlog.Debug("pvmrun: host call", "id", hostCall)
		reg.Set(7, ^uint64(0)-1) // WHAT
		return true, 0
	}

	gasUsed, res, _ := invocation.Invoke(code, entryPC, gas, args, dispatch, nil)
	fmt.Printf("result=%s gasUsed=%d\n", resultName(res.Code), gasUsed)
	if res.Code == pvm.ResultHalt {
		fmt.Printf("halt=%s\n", hex.EncodeToString(res.Halt))
	}
}

func runAccumulate(code []byte, gas int64, fx fixture) {
	if len(fx.Accounts) == 0 {
		fmt.Fprintln(os.Stderr, "error: accumulate mode needs at least one account in the fixture")
		os.Exit(1)
	}
	st := state.New(fx.NumCores)
	var serviceID common.ServiceID
	for _, a := range fx.Accounts {
		hashBytes, err := hex.DecodeString(a.CodeHashHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: bad codeHashHex for account %d: %v\n", a.ID, err)
			os.Exit(1)
		}
		acc := state.NewServiceAccount(common.BytesToHash(hashBytes), fx.Timeslot)
		acc.Balance = a.Balance
		acc.MinAccGas = a.MinAccGas
		acc.MinMemoGas = a.MinMemoGas
		id := common.ServiceID(a.ID)
		st.Accounts[id] = acc
		if id == common.ServiceID(fx.ServiceID) {
			serviceID = id
		}
	}

	codeHash := common.BytesToHash(mustDecodeHex(fx.Accounts[indexOf(fx.Accounts, fx.ServiceID)].CodeHashHex))
	store := accumulate.MapPreimageStore{codeHash: code}

	var entropy [32]byte
	if fx.EntropyHex != "" {
		copy(entropy[:], mustDecodeHex(fx.EntropyHex))
	}

	res := accumulate.Invoke(st, store, fx.Timeslot, serviceID, gas, nil, fx.NumCores, entropy)
	if res.IsErr {
		fmt.Printf("result=ERR(%d) gasUsed=%d\n", res.Err, res.GasUsed)
		return
	}
	fmt.Printf("result=%s gasUsed=%d\n", resultName(res.ResultCode), res.GasUsed)
	if res.Yield != nil {
		fmt.Printf("yield=%s\n", res.Yield.Hex())
	}
}

func indexOf(accounts []accountFixture, id uint32) int {
	for i, a := range accounts {
		if a.ID == id {
			return i
		}
	}
	return 0
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: bad hex %q: %v\n", s, err)
		os.Exit(1)
	}
	return b
}

func resultName(code pvm.ResultCode) string {
	switch code {
	case pvm.ResultHalt:
		return "HALT"
	case pvm.ResultPanic:
		return "PANIC"
	case pvm.ResultFault:
		return "FAULT"
	case pvm.ResultHost:
		return "HOST"
	case pvm.ResultOOG:
		return "OOG"
	default:
		return "UNKNOWN"
	}
}
