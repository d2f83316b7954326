package abi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseSignature turns a human-readable signature from a signature database,
// e.g. "transfer(address,uint256)" or
// "getReserves() returns (uint112,uint112,uint32)", into a function entry.
// Parameter names are not part of the canonical form, so inputs get
// param<i> names. A returns clause marks the entry view: databases only
// advertise return types for read-only functions by convention.
func ParseSignature(sig string) (*Entry, error) {
	sig = strings.TrimSpace(sig)
	open := strings.Index(sig, "(")
	if open <= 0 {
		return nil, fmt.Errorf("signature %q: missing parameter list", sig)
	}
	name := sig[:open]
	close := matchingParen(sig, open)
	if close < 0 {
		return nil, fmt.Errorf("signature %q: unbalanced parentheses", sig)
	}

	entry := &Entry{
		Kind:       KindFunction,
		Name:       name,
		Inputs:     paramsFromTypes(SplitTopLevel(sig[open+1 : close])),
		Mutability: MutabilityNonpayable,
	}

	rest := strings.TrimSpace(sig[close+1:])
	if rest != "" {
		if !strings.HasPrefix(rest, "returns") {
			return nil, fmt.Errorf("signature %q: unexpected trailing %q", sig, rest)
		}
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "returns"))
		if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
			return nil, fmt.Errorf("signature %q: malformed returns clause", sig)
		}
		entry.Outputs = paramsFromTypes(SplitTopLevel(rest[1 : len(rest)-1]))
		entry.Mutability = MutabilityView
	}

	entry.Selector = ComputeSelector(entry.Name, entry.Inputs)
	return entry, nil
}

// SplitTopLevel splits a comma-joined type list without breaking nested
// tuple or array types apart, so "(uint256,address)[],bytes32" yields two
// elements.
func SplitTopLevel(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func paramsFromTypes(types []string) []Param {
	params := make([]Param, 0, len(types))
	for i, t := range types {
		params = append(params, Param{
			Name: fmt.Sprintf("param%d", i),
			Type: canonicalType(t),
		})
	}
	return params
}

// jsonParam mirrors a parameter of author-published ABI JSON, including
// tuple components which the flat Param model collapses into "(a,b,c)"
// composite type strings.
type jsonParam struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Components []jsonParam `json:"components,omitempty"`
}

type jsonEntry struct {
	Type            string      `json:"type"`
	Name            string      `json:"name"`
	Inputs          []jsonParam `json:"inputs"`
	Outputs         []jsonParam `json:"outputs"`
	StateMutability string      `json:"stateMutability"`
	Constant        bool        `json:"constant"`
	Payable         bool        `json:"payable"`
}

// ParseJSON decodes an author-published ABI JSON document (Etherscan,
// Sourcify metadata) into entries. Constructors, fallback and receive
// declarations carry no selector and are mapped to KindOther.
func ParseJSON(raw []byte) ([]Entry, error) {
	var decoded []jsonEntry
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parse ABI JSON: %w", err)
	}

	entries := make([]Entry, 0, len(decoded))
	for _, item := range decoded {
		entry := Entry{
			Name:    item.Name,
			Inputs:  flattenParams(item.Inputs),
			Outputs: flattenParams(item.Outputs),
		}
		switch item.Type {
		case "function":
			entry.Kind = KindFunction
			entry.Selector = ComputeSelector(entry.Name, entry.Inputs)
			entry.Mutability = mutabilityFromJSON(item)
		case "event":
			entry.Kind = KindEvent
		case "error":
			entry.Kind = KindError
		default:
			entry.Kind = KindOther
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func flattenParams(in []jsonParam) []Param {
	if len(in) == 0 {
		return nil
	}
	out := make([]Param, len(in))
	for i, p := range in {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("param%d", i)
		}
		out[i] = Param{Name: name, Type: compositeType(p)}
	}
	return out
}

// compositeType renders tuple types as "(t1,t2)" with any array suffix
// preserved, which keeps selector recomputation correct for struct params.
func compositeType(p jsonParam) string {
	if !strings.HasPrefix(p.Type, "tuple") {
		return canonicalType(p.Type)
	}
	inner := make([]string, len(p.Components))
	for i, c := range p.Components {
		inner[i] = compositeType(c)
	}
	return "(" + strings.Join(inner, ",") + ")" + strings.TrimPrefix(p.Type, "tuple")
}

// Older Etherscan responses predate stateMutability and use the
// constant/payable flag pair instead.
func mutabilityFromJSON(item jsonEntry) Mutability {
	switch item.StateMutability {
	case "pure":
		return MutabilityPure
	case "view":
		return MutabilityView
	case "payable":
		return MutabilityPayable
	case "nonpayable":
		return MutabilityNonpayable
	}
	if item.Payable {
		return MutabilityPayable
	}
	if item.Constant {
		return MutabilityView
	}
	return MutabilityNonpayable
}
