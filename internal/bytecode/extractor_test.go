package bytecode

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dispatcherCode assembles a minimal Solidity-shaped dispatcher: the
// calldata prologue followed by one DUP1 PUSH4 <sel> EQ PUSH2 <dest> JUMPI
// sequence per selector.
func dispatcherCode(withCallValueGuard bool, selectors ...string) []byte {
	code := []byte{
		0x60, 0x80, 0x60, 0x40, 0x52, // PUSH1 0x80 PUSH1 0x40 MSTORE
	}
	if withCallValueGuard {
		code = append(code, 0x34, 0x15) // CALLVALUE ISZERO
	}
	code = append(code,
		0x60, 0x00, 0x35, // PUSH1 0x00 CALLDATALOAD
		0x60, 0xe0, 0x1c, // PUSH1 0xe0 SHR
	)
	for _, sel := range selectors {
		code = append(code, 0x80)                            // DUP1
		code = append(code, 0x63)                            // PUSH4
		code = append(code, common.FromHex(sel)...)          //   selector
		code = append(code, 0x14)                            // EQ
		code = append(code, 0x61, 0x00, 0x40)                // PUSH2 dest
		code = append(code, 0x57)                            // JUMPI
	}
	code = append(code, 0x5b, 0x60, 0x00, 0x60, 0x00, 0xfd) // JUMPDEST PUSH1 0 PUSH1 0 REVERT
	return code
}

func TestExtractSelectors(t *testing.T) {
	code := dispatcherCode(true, "0xa9059cbb", "0x70a08231", "0x095ea7b3")

	selectors, err := ExtractSelectors(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa9059cbb", "0x70a08231", "0x095ea7b3"}, selectors)
}

func TestExtractSelectorsDeduplicates(t *testing.T) {
	code := dispatcherCode(true, "0xa9059cbb", "0xa9059cbb", "0x70a08231")

	selectors, err := ExtractSelectors(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa9059cbb", "0x70a08231"}, selectors)
}

func TestExtractSelectorsSubComparison(t *testing.T) {
	// Some optimizer settings emit SUB (or XOR) instead of EQ before JUMPI.
	code := []byte{
		0x60, 0x00, 0x35, 0x60, 0xe0, 0x1c, // calldata prologue
		0x80, 0x63, 0xa9, 0x05, 0x9c, 0xbb, // DUP1 PUSH4 a9059cbb
		0x03,             // SUB
		0x61, 0x00, 0x40, // PUSH2
		0x57, // JUMPI
		0x00, // STOP
	}

	selectors, err := ExtractSelectors(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa9059cbb"}, selectors)
}

func TestExtractSelectorsIgnoresCalldataMask(t *testing.T) {
	code := dispatcherCode(true, "0xffffffff", "0xa9059cbb")

	selectors, err := ExtractSelectors(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa9059cbb"}, selectors)
}

func TestExtractSelectorsExpiresStaleCandidates(t *testing.T) {
	// A PUSH4 followed by unrelated work before the comparison is not a
	// dispatch: the candidate must expire past the comparison window.
	code := []byte{
		0x63, 0xa9, 0x05, 0x9c, 0xbb, // PUSH4 a9059cbb
		0x80, 0x80, 0x80, // DUP1 DUP1 DUP1
		0x14,             // EQ (too late)
		0x61, 0x00, 0x40, // PUSH2
		0x57, // JUMPI
		0x00, // STOP
	}

	selectors, err := ExtractSelectors(code)
	require.NoError(t, err)
	assert.Empty(t, selectors)
}

func TestExtractSelectorsEmptyCode(t *testing.T) {
	_, err := ExtractSelectors(nil)
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestExtractSelectorsNoDispatcher(t *testing.T) {
	// Unrecognizable code yields an empty surface, not an error.
	code := []byte{0x60, 0x00, 0x60, 0x00, 0xfd} // PUSH1 0 PUSH1 0 REVERT

	selectors, err := ExtractSelectors(code)
	require.NoError(t, err)
	assert.Empty(t, selectors)
}

func TestExtractSelectorsTruncatedTrailingPush(t *testing.T) {
	// Solidity metadata often ends mid-push; everything scanned before the
	// truncation still counts.
	code := dispatcherCode(true, "0xa9059cbb")
	code = append(code, 0x63, 0x01) // truncated PUSH4

	selectors, err := ExtractSelectors(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa9059cbb"}, selectors)
}

func TestSkeletonNonpayableWhenCallValueGuarded(t *testing.T) {
	code := dispatcherCode(true, "0xa9059cbb", "0x70a08231")

	entries, err := Skeleton(code)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "func_a9059cbb", entries[0].Name)
	assert.Equal(t, "0xa9059cbb", entries[0].Selector)
	for _, e := range entries {
		assert.Equal(t, "nonpayable", string(e.Mutability))
	}
}

func TestSkeletonPayableGuessWithoutCallValue(t *testing.T) {
	code := dispatcherCode(false, "0xd0e30db0") // deposit()

	entries, err := Skeleton(code)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "payable", string(entries[0].Mutability))
}

func TestSkeletonNoCode(t *testing.T) {
	_, err := Skeleton([]byte{})
	assert.ErrorIs(t, err, ErrNoCode)
}
