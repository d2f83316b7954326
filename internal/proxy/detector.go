// Package proxy determines whether a contract delegates its calls to a
// separate implementation, and where that implementation lives.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/portdeveloper/abi-recon/internal/chainreader"
)

// Well-known implementation-pointer storage slots, in probe priority order.
const (
	// bytes32(uint256(keccak256("eip1967.proxy.implementation")) - 1)
	EIP1967LogicSlot = "0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc"
	// bytes32(uint256(keccak256("eip1967.proxy.beacon")) - 1)
	EIP1967BeaconSlot = "0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50"
	// keccak256("org.zeppelinos.proxy.implementation")
	OpenZeppelinImplementationSlot = "0x7050c9e0f4ca769c69bd3a8ef740bc37934f8e2c036e5a723fd8ee048ed3f8c3"
	// keccak256("PROXIABLE"), EIP-1822 UUPS
	EIP1822LogicSlot = "0xc5f16f0fcc639fa48a6947836d9850f504798523bf8c9a3a87d5876cf622bcf7"
	// Gnosis Safe masterCopy and other naive proxies keep the target in slot 0
	NaiveSlotZero = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

// Beacon contracts answer one of these for their current implementation.
var beaconMethods = [][]byte{
	common.FromHex("0x5c60da1b"), // implementation()
	common.FromHex("0xda525716"), // childImplementation()
}

// Selectors that mark a contract as proxy-like when they show up in its
// dispatch surface. A supporting signal only: it never produces an
// implementation address by itself.
var managementSelectors = map[string]bool{
	"0x5c60da1b": true, // implementation()
	"0x3659cfe6": true, // upgradeTo(address)
	"0x4f1ef286": true, // upgradeToAndCall(address,bytes)
	"0xf851a440": true, // admin()
	"0xa619486e": true, // masterCopy()
	"0xbb82aa5e": true, // comptrollerImplementation()
	"0x1f931c1c": true, // diamondCut((address,uint8,bytes4[])[],address,bytes)
	"0x52ef6b2c": true, // facetAddresses()
}

// EIP-1167 minimal proxy bytecode framing.
var (
	eip1167Prefix = common.FromHex("0x363d3d373d3d3d363d")
	eip1167Suffix = common.FromHex("0x57fd5bf3")
)

// Info describes a detected delegate pattern.
type Info struct {
	Implementation common.Address
	Mechanism      string
}

// ManagementSurface reports whether the selector set intersects the
// canonical proxy-management functions.
func ManagementSurface(selectors []string) bool {
	for _, sel := range selectors {
		if managementSelectors[strings.ToLower(sel)] {
			return true
		}
	}
	return false
}

type probe struct {
	mechanism string
	run       func(ctx context.Context) (common.Address, error)
}

type probeResult struct {
	priority int
	target   common.Address
}

// Detect runs every detection strategy and returns the implementation
// address of the highest-priority strategy that produced a validated,
// code-bearing address. (nil, nil) means no delegate pattern was found,
// even when the selector heuristic flags the contract as proxy-like;
// callers then surface the contract as a standalone interface.
func Detect(ctx context.Context, reader chainreader.Reader, address common.Address, selectors []string, log zerolog.Logger) (*Info, error) {
	probes := []probe{
		{"eip1167", func(ctx context.Context) (common.Address, error) {
			return detectMinimalProxy(ctx, reader, address)
		}},
		{"eip1967", slotProbe(reader, address, EIP1967LogicSlot)},
		{"eip1967-beacon", func(ctx context.Context) (common.Address, error) {
			return detectBeacon(ctx, reader, address)
		}},
		{"zeppelin-legacy", slotProbe(reader, address, OpenZeppelinImplementationSlot)},
		{"eip1822", slotProbe(reader, address, EIP1822LogicSlot)},
	}
	// Slot 0 holds an address in far too many ordinary contracts to probe
	// blindly; it participates only when the dispatch surface already looks
	// proxy-like (Safe's masterCopy(), Compound's comptroller surface).
	if ManagementSurface(selectors) {
		probes = append(probes, probe{"slot0", slotProbe(reader, address, NaiveSlotZero)})
	}

	results := make(chan probeResult, len(probes))
	for i, p := range probes {
		go func(priority int, p probe) {
			target, err := p.run(ctx)
			if err != nil {
				// One unreachable slot must not abort the others.
				log.Debug().Err(err).Str("mechanism", p.mechanism).Msg("proxy probe failed")
				results <- probeResult{priority: priority}
				return
			}
			if target != (common.Address{}) && !hasCode(ctx, reader, target) {
				target = common.Address{}
			}
			results <- probeResult{priority: priority, target: target}
		}(i, p)
	}

	best := -1
	var bestTarget common.Address
	for range probes {
		res := <-results
		if res.target == (common.Address{}) {
			continue
		}
		if best == -1 || res.priority < best {
			best = res.priority
			bestTarget = res.target
		}
	}

	if best == -1 {
		if ManagementSurface(selectors) {
			log.Debug().Str("address", address.Hex()).
				Msg("proxy-like selectors but no implementation slot resolved")
		}
		return nil, nil
	}
	return &Info{Implementation: bestTarget, Mechanism: probes[best].mechanism}, nil
}

// slotProbe reads one implementation-pointer slot and extracts the low 20
// bytes as a candidate address.
func slotProbe(reader chainreader.Reader, address common.Address, slot string) func(ctx context.Context) (common.Address, error) {
	return func(ctx context.Context) (common.Address, error) {
		word, err := reader.StorageAt(ctx, address, common.HexToHash(slot))
		if err != nil {
			return common.Address{}, err
		}
		if isZeroWord(word) {
			return common.Address{}, nil
		}
		return common.BytesToAddress(word), nil
	}
}

func detectBeacon(ctx context.Context, reader chainreader.Reader, address common.Address) (common.Address, error) {
	word, err := reader.StorageAt(ctx, address, common.HexToHash(EIP1967BeaconSlot))
	if err != nil {
		return common.Address{}, err
	}
	if isZeroWord(word) {
		return common.Address{}, nil
	}
	beacon := common.BytesToAddress(word)
	for _, method := range beaconMethods {
		data, err := reader.CallContract(ctx, beacon, method)
		if err != nil || len(data) < 32 || isZeroWord(data) {
			continue
		}
		return common.BytesToAddress(data[12:32]), nil
	}
	return common.Address{}, fmt.Errorf("beacon %s answered no implementation method", beacon.Hex())
}

// detectMinimalProxy recognizes the EIP-1167 forwarder by its bytecode
// framing: 363d3d373d3d3d363d <push> <address> ... 57fd5bf3. The push width
// varies because deployers strip leading zero bytes from the target.
func detectMinimalProxy(ctx context.Context, reader chainreader.Reader, address common.Address) (common.Address, error) {
	code, err := reader.CodeAt(ctx, address)
	if err != nil {
		return common.Address{}, err
	}
	if !bytes.HasPrefix(code, eip1167Prefix) || !bytes.HasSuffix(code, eip1167Suffix) {
		return common.Address{}, nil
	}

	i := len(eip1167Prefix)
	if i >= len(code) {
		return common.Address{}, nil
	}
	push := code[i] // PUSH1..PUSH20
	if push < 0x60 || push > 0x73 {
		return common.Address{}, nil
	}
	addrLen := int(push) - 0x5f
	if i+1+addrLen > len(code) {
		return common.Address{}, nil
	}

	var target common.Address
	copy(target[20-addrLen:], code[i+1:i+1+addrLen])
	if target == (common.Address{}) {
		return common.Address{}, nil
	}
	return target, nil
}

func hasCode(ctx context.Context, reader chainreader.Reader, address common.Address) bool {
	code, err := reader.CodeAt(ctx, address)
	return err == nil && len(code) > 0
}

func isZeroWord(word []byte) bool {
	return new(big.Int).SetBytes(word).Sign() == 0
}
