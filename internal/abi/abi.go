// Package abi holds the reconstructed-interface data model shared by the
// whole pipeline: entries, selectors, canonical signatures and the final
// reconstruction result.
package abi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind tags an interface entry. Only functions carry a selector and
// mutability; events are identified by their topic hash.
type Kind string

const (
	KindFunction Kind = "function"
	KindEvent    Kind = "event"
	KindError    Kind = "error"
	KindOther    Kind = "other"
)

// Mutability is the Solidity stateMutability of a function entry.
type Mutability string

const (
	MutabilityPure       Mutability = "pure"
	MutabilityView       Mutability = "view"
	MutabilityNonpayable Mutability = "nonpayable"
	MutabilityPayable    Mutability = "payable"
)

// SourceKind records where a reconstruction came from.
type SourceKind string

const (
	SourceVerified SourceKind = "verified"
	SourceBytecode SourceKind = "bytecode-analysis"
)

// Param is a single named input or output.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Entry is one function/event/error of a reconstructed interface.
// The selector is the stable identity of a function entry: it is set when
// the entry is created from bytecode and never reassigned afterwards.
type Entry struct {
	Kind       Kind
	Name       string
	Selector   string // 0x-prefixed 8 hex chars, functions only
	Inputs     []Param
	Outputs    []Param
	Mutability Mutability // functions only
}

// Resolved reports whether the entry still carries its placeholder name.
func (e *Entry) Resolved() bool {
	return e.Name != "" && !strings.HasPrefix(e.Name, "func_")
}

// Key is the dedup identity: selector for functions, topic hash for events,
// kind+name for everything else.
func (e *Entry) Key() string {
	switch e.Kind {
	case KindFunction:
		return string(KindFunction) + ":" + strings.ToLower(e.Selector)
	case KindEvent:
		return string(KindEvent) + ":" + e.EventTopic()
	default:
		return string(e.Kind) + ":" + e.Name
	}
}

// EventTopic returns the keccak hash of the canonical signature, the value
// a node puts in topics[0] when the event fires.
func (e *Entry) EventTopic() string {
	h := crypto.Keccak256([]byte(CanonicalSignature(e.Name, e.Inputs)))
	return "0x" + common.Bytes2Hex(h)
}

// entryJSON is the wire shape, kept close to the standard Solidity ABI JSON
// so existing tooling can consume it. Mutability is omitted for non-function
// kinds rather than serialized empty.
type entryJSON struct {
	Type            string  `json:"type"`
	Name            string  `json:"name,omitempty"`
	Selector        string  `json:"selector,omitempty"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs,omitempty"`
	StateMutability string  `json:"stateMutability,omitempty"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		Type:   string(e.Kind),
		Name:   e.Name,
		Inputs: e.Inputs,
	}
	if out.Inputs == nil {
		out.Inputs = []Param{}
	}
	if e.Kind == KindFunction {
		out.Selector = strings.ToLower(e.Selector)
		out.Outputs = e.Outputs
		mut := e.Mutability
		if mut == "" {
			mut = MutabilityNonpayable
		}
		out.StateMutability = string(mut)
	}
	return json.Marshal(out)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case "function":
		e.Kind = KindFunction
	case "event":
		e.Kind = KindEvent
	case "error":
		e.Kind = KindError
	default:
		e.Kind = KindOther
	}
	e.Name = in.Name
	e.Selector = strings.ToLower(in.Selector)
	e.Inputs = in.Inputs
	e.Outputs = in.Outputs
	e.Mutability = Mutability(in.StateMutability)
	if e.Kind == KindFunction && e.Selector == "" && e.Name != "" {
		e.Selector = ComputeSelector(e.Name, e.Inputs)
	}
	return nil
}

// ProxyInfo is attached to a result when a delegate pattern was unwound.
type ProxyInfo struct {
	Implementation string `json:"implementation"`
	Mechanism      string `json:"mechanism,omitempty"`
}

// ReconstructionResult is the single output type of the pipeline.
type ReconstructionResult struct {
	Address string     `json:"address"` // checksummed
	ChainID int64      `json:"chainId"`
	Entries []Entry    `json:"entries"`
	Proxy   *ProxyInfo `json:"proxy,omitempty"`
	Source  SourceKind `json:"source"`
}

// Entry lookup by dedup key; used when merging proxy and implementation.
func (r *ReconstructionResult) index() map[string]int {
	idx := make(map[string]int, len(r.Entries))
	for i := range r.Entries {
		idx[r.Entries[i].Key()] = i
	}
	return idx
}

// Merge folds the implementation's entries into the proxy's result. On a
// selector collision the implementation entry wins, since that is the code a
// caller actually reaches through the delegatecall.
func (r *ReconstructionResult) Merge(impl *ReconstructionResult) {
	idx := r.index()
	for _, e := range impl.Entries {
		if i, ok := idx[e.Key()]; ok {
			r.Entries[i] = e
			continue
		}
		idx[e.Key()] = len(r.Entries)
		r.Entries = append(r.Entries, e)
	}
}

// PlaceholderEntry builds the unresolved skeleton entry for a dispatch
// selector: deterministic func_<selector> name, no params, nonpayable.
func PlaceholderEntry(selector string) Entry {
	selector = strings.ToLower(selector)
	return Entry{
		Kind:       KindFunction,
		Name:       "func_" + strings.TrimPrefix(selector, "0x"),
		Selector:   selector,
		Mutability: MutabilityNonpayable,
	}
}

// CanonicalSignature renders name(inputs...) with canonicalized type names,
// the exact string keccak'd for selector and topic derivation.
func CanonicalSignature(name string, inputs []Param) string {
	types := make([]string, len(inputs))
	for i, p := range inputs {
		types[i] = canonicalType(p.Type)
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// ComputeSelector derives the 4-byte dispatch selector from a resolved
// name and input list.
func ComputeSelector(name string, inputs []Param) string {
	h := crypto.Keccak256([]byte(CanonicalSignature(name, inputs)))
	return "0x" + common.Bytes2Hex(h[:4])
}

// NormalizeSelector validates and lowercases a 4-byte selector string.
func NormalizeSelector(s string) (string, error) {
	s = strings.ToLower(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	if len(s) != 10 {
		return "", fmt.Errorf("selector %q: want 0x followed by 8 hex chars", s)
	}
	for _, r := range s[2:] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("selector %q: invalid hex", s)
		}
	}
	return s, nil
}

// ValidAddress reports whether s parses as a 20-byte hex address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// ChecksumAddress returns the EIP-55 checksummed rendering.
func ChecksumAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// canonicalType maps shorthand Solidity types to the canonical names used
// in signature hashing: uint -> uint256, int -> int256, recursing through
// array suffixes and tuple components.
func canonicalType(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.LastIndex(t, "["); i >= 0 && strings.HasSuffix(t, "]") {
		return canonicalType(t[:i]) + t[i:]
	}
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		parts := SplitTopLevel(t[1 : len(t)-1])
		for i, p := range parts {
			parts[i] = canonicalType(p)
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
	switch t {
	case "uint":
		return "uint256"
	case "int":
		return "int256"
	case "byte":
		return "bytes1"
	}
	return t
}
