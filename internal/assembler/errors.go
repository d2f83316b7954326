package assembler

// InvalidAddressError rejects a malformed address before any network call.
type InvalidAddressError struct {
	Address string
}

func (e *InvalidAddressError) Error() string {
	return "invalid address: " + e.Address
}

// NoContractError means the address holds no code on this chain. It is
// fatal for the queried address but does not abort an outer proxy assembly
// whose implementation pointer turned out to be dangling.
type NoContractError struct {
	Address string
}

func (e *NoContractError) Error() string {
	return "no contract at address: " + e.Address
}
