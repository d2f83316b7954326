package abi

import "strings"

// Fragment is one row of the output-backfill table: a well-known method
// shape whose outputs and mutability can be copied onto a resolved entry
// that is missing them.
type Fragment struct {
	Name       string
	Inputs     []string
	Outputs    []Param
	Mutability Mutability
}

// wellKnownFragments covers the interfaces a caller is overwhelmingly
// likely to meet on unverified contracts: ERC-20, the read side of ERC-721,
// ERC-165 and the usual proxy management surface. Matching is by name plus
// exact input types, so an entry still carrying its func_<selector>
// placeholder can never be backfilled.
var wellKnownFragments = []Fragment{
	// ERC-20
	{"name", nil, []Param{{"", "string"}}, MutabilityView},
	{"symbol", nil, []Param{{"", "string"}}, MutabilityView},
	{"decimals", nil, []Param{{"", "uint8"}}, MutabilityView},
	{"totalSupply", nil, []Param{{"", "uint256"}}, MutabilityView},
	{"balanceOf", []string{"address"}, []Param{{"", "uint256"}}, MutabilityView},
	{"allowance", []string{"address", "address"}, []Param{{"", "uint256"}}, MutabilityView},
	{"transfer", []string{"address", "uint256"}, []Param{{"", "bool"}}, MutabilityNonpayable},
	{"transferFrom", []string{"address", "address", "uint256"}, []Param{{"", "bool"}}, MutabilityNonpayable},
	{"approve", []string{"address", "uint256"}, []Param{{"", "bool"}}, MutabilityNonpayable},

	// ERC-721 read surface (balanceOf/transferFrom shapes shared with ERC-20 above)
	{"ownerOf", []string{"uint256"}, []Param{{"", "address"}}, MutabilityView},
	{"getApproved", []string{"uint256"}, []Param{{"", "address"}}, MutabilityView},
	{"isApprovedForAll", []string{"address", "address"}, []Param{{"", "bool"}}, MutabilityView},
	{"tokenURI", []string{"uint256"}, []Param{{"", "string"}}, MutabilityView},

	// ERC-165
	{"supportsInterface", []string{"bytes4"}, []Param{{"", "bool"}}, MutabilityView},

	// Proxy management
	{"implementation", nil, []Param{{"", "address"}}, MutabilityView},
	{"admin", nil, []Param{{"", "address"}}, MutabilityView},
	{"masterCopy", nil, []Param{{"", "address"}}, MutabilityView},
	{"owner", nil, []Param{{"", "address"}}, MutabilityView},
}

// Backfill copies outputs and mutability from the well-known table onto
// function entries that resolved a name but no outputs. It never overrides
// an output set that resolution already produced.
func Backfill(entries []Entry) {
	for i := range entries {
		e := &entries[i]
		if e.Kind != KindFunction || !e.Resolved() || len(e.Outputs) > 0 {
			continue
		}
		if frag, ok := lookupFragment(e.Name, e.Inputs); ok {
			e.Outputs = frag.Outputs
			e.Mutability = frag.Mutability
		}
	}
}

func lookupFragment(name string, inputs []Param) (*Fragment, bool) {
	for i := range wellKnownFragments {
		frag := &wellKnownFragments[i]
		if frag.Name != name || len(frag.Inputs) != len(inputs) {
			continue
		}
		match := true
		for j, t := range frag.Inputs {
			if !strings.EqualFold(canonicalType(inputs[j].Type), t) {
				match = false
				break
			}
		}
		if match {
			return frag, true
		}
	}
	return nil, false
}
