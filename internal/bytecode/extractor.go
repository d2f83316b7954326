// Package bytecode recovers the dispatch surface of deployed EVM bytecode.
// It is pure static analysis: no network access, no execution.
package bytecode

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/asm"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/portdeveloper/abi-recon/internal/abi"
)

// ErrNoCode distinguishes "no contract at this address" from a contract
// whose dispatcher simply could not be recognized (which yields an empty
// selector set, not an error).
var ErrNoCode = errors.New("no bytecode at address")

// Solidity guards every PUSH4 in the dispatcher with an EQ (or SUB/XOR for
// some optimizer settings) followed closely by a JUMPI into the function
// body. cmpWindow and jumpWindow bound how many instructions apart those
// may sit before a candidate is discarded.
const (
	cmpWindow  = 2
	jumpWindow = 3
)

// ExtractSelectors scans deployed bytecode for the Solidity dispatcher
// pattern and returns the 4-byte selectors it compares against, in order of
// first appearance. Contracts without a recognizable dispatcher yield an
// empty set.
func ExtractSelectors(code []byte) ([]string, error) {
	if len(code) == 0 {
		return nil, ErrNoCode
	}

	var (
		selectors []string
		seen      = make(map[string]bool)

		pending  string
		age      int
		compared bool
	)

	it := asm.NewInstructionIterator(code)
	for it.Next() {
		if pending != "" {
			age++
			if (!compared && age > cmpWindow) || (compared && age > cmpWindow+jumpWindow) {
				pending, compared = "", false
			}
		}

		switch op := it.Op(); {
		case op == vm.PUSH4:
			arg := it.Arg()
			// 0xffffffff is the mask Solidity pushes to truncate calldata,
			// never a dispatch target.
			if len(arg) == 4 && !(arg[0] == 0xff && arg[1] == 0xff && arg[2] == 0xff && arg[3] == 0xff) {
				pending = "0x" + common.Bytes2Hex(arg)
				age = 0
				compared = false
			}
		case op == vm.EQ || op == vm.SUB || op == vm.XOR:
			if pending != "" && !compared {
				compared = true
				age = 0
			}
		case op == vm.JUMPI:
			if pending != "" && compared {
				if !seen[pending] {
					seen[pending] = true
					selectors = append(selectors, pending)
				}
				pending, compared = "", false
			}
		}
	}
	// A truncated trailing PUSH (metadata bytes) ends iteration with an
	// error; everything before it was still scanned.
	return selectors, nil
}

// Skeleton builds the coarse ABI for the dispatch surface: one placeholder
// function entry per selector, nonpayable by default. A contract whose code
// never inspects CALLVALUE cannot be rejecting ether, so its entries are
// guessed payable.
func Skeleton(code []byte) ([]abi.Entry, error) {
	selectors, err := ExtractSelectors(code)
	if err != nil {
		return nil, err
	}

	mutability := abi.MutabilityNonpayable
	if !usesCallValue(code) {
		mutability = abi.MutabilityPayable
	}

	entries := make([]abi.Entry, 0, len(selectors))
	for _, sel := range selectors {
		entry := abi.PlaceholderEntry(sel)
		entry.Mutability = mutability
		entries = append(entries, entry)
	}
	return entries, nil
}

func usesCallValue(code []byte) bool {
	it := asm.NewInstructionIterator(code)
	for it.Next() {
		if it.Op() == vm.CALLVALUE {
			return true
		}
	}
	return false
}
