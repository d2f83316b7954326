package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackfillKnownMethod(t *testing.T) {
	entries := []Entry{
		{Kind: KindFunction, Name: "balanceOf", Selector: "0x70a08231",
			Inputs: []Param{{"param0", "address"}}, Mutability: MutabilityNonpayable},
	}

	Backfill(entries)

	require.Len(t, entries[0].Outputs, 1)
	assert.Equal(t, "uint256", entries[0].Outputs[0].Type)
	assert.Equal(t, MutabilityView, entries[0].Mutability)
}

func TestBackfillRequiresExactInputTypes(t *testing.T) {
	entries := []Entry{
		// Same name as ERC-20 transfer but a different shape.
		{Kind: KindFunction, Name: "transfer", Selector: "0x12345678",
			Inputs: []Param{{"param0", "address"}}},
	}

	Backfill(entries)

	assert.Empty(t, entries[0].Outputs)
}

func TestBackfillSkipsPlaceholders(t *testing.T) {
	entries := []Entry{PlaceholderEntry("0x70a08231")}

	Backfill(entries)

	assert.Empty(t, entries[0].Outputs)
	assert.Equal(t, MutabilityNonpayable, entries[0].Mutability)
}

func TestBackfillNeverOverridesResolvedOutputs(t *testing.T) {
	entries := []Entry{
		{Kind: KindFunction, Name: "balanceOf", Selector: "0x70a08231",
			Inputs:     []Param{{"param0", "address"}},
			Outputs:    []Param{{"", "uint128"}},
			Mutability: MutabilityView},
	}

	Backfill(entries)

	assert.Equal(t, "uint128", entries[0].Outputs[0].Type)
}

func TestBackfillIgnoresEvents(t *testing.T) {
	entries := []Entry{
		{Kind: KindEvent, Name: "Transfer",
			Inputs: []Param{{"from", "address"}, {"to", "address"}, {"value", "uint256"}}},
	}

	Backfill(entries)

	assert.Empty(t, entries[0].Outputs)
}

func TestBackfillProxyManagementSurface(t *testing.T) {
	entries := []Entry{
		{Kind: KindFunction, Name: "implementation", Selector: "0x5c60da1b"},
		{Kind: KindFunction, Name: "masterCopy", Selector: "0xa619486e"},
	}

	Backfill(entries)

	for _, e := range entries {
		require.Len(t, e.Outputs, 1, e.Name)
		assert.Equal(t, "address", e.Outputs[0].Type, e.Name)
		assert.Equal(t, MutabilityView, e.Mutability, e.Name)
	}
}
