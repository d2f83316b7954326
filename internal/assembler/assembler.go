// Package assembler orchestrates the reconstruction pipeline: verified
// lookup, bytecode fallback, proxy unwinding, output backfill, caching.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/portdeveloper/abi-recon/internal/abi"
	"github.com/portdeveloper/abi-recon/internal/bytecode"
	"github.com/portdeveloper/abi-recon/internal/cache"
	"github.com/portdeveloper/abi-recon/internal/chainreader"
	"github.com/portdeveloper/abi-recon/internal/proxy"
)

// A proxy whose implementation is itself a proxy is rare but real; a chain
// longer than this (or any cycle) stops unwinding and the partial merge is
// surfaced as-is.
const maxProxyHops = 2

// VerifiedLoader is the verified-source capability (see internal/verified).
type VerifiedLoader interface {
	Load(ctx context.Context, address string, chainID int64) ([]abi.Entry, error)
}

// SignatureResolver is the signature-database capability (see internal/sigdb).
type SignatureResolver interface {
	ResolveAll(ctx context.Context, selectors []string) map[string]*abi.Entry
}

// Assembler is the single public entry point of the reconstruction core.
type Assembler struct {
	reader   chainreader.Reader
	loader   VerifiedLoader
	resolver SignatureResolver
	store    cache.Store
	log      zerolog.Logger
}

func New(reader chainreader.Reader, loader VerifiedLoader, resolver SignatureResolver, store cache.Store, log zerolog.Logger) *Assembler {
	return &Assembler{
		reader:   reader,
		loader:   loader,
		resolver: resolver,
		store:    store,
		log:      log,
	}
}

// Assemble reconstructs the callable interface of the contract at address.
// Hard failures are limited to InvalidAddressError and NoContractError;
// everything else degrades to a partial result with placeholder entries.
func (a *Assembler) Assemble(ctx context.Context, address string, chainID int64) (*abi.ReconstructionResult, error) {
	if !abi.ValidAddress(address) {
		return nil, &InvalidAddressError{Address: address}
	}
	return a.assemble(ctx, address, chainID, 0, map[string]bool{})
}

// ClearCache drops every cached reconstruction; exposed to operators.
func (a *Assembler) ClearCache() {
	a.store.Clear()
}

func (a *Assembler) assemble(ctx context.Context, address string, chainID int64, depth int, visited map[string]bool) (*abi.ReconstructionResult, error) {
	if result, ok := a.store.Get(address, chainID); ok {
		return result, nil
	}
	visited[strings.ToLower(address)] = true

	result, err := a.reconstruct(ctx, address, chainID)
	if err != nil {
		return nil, err
	}

	a.proxyCheck(ctx, result, chainID, depth, visited)
	abi.Backfill(result.Entries)

	a.store.Put(address, chainID, result, result.Source == abi.SourceVerified)
	return result, nil
}

// reconstruct runs VerifiedLookup and, when that comes back empty, the
// bytecode fallback.
func (a *Assembler) reconstruct(ctx context.Context, address string, chainID int64) (*abi.ReconstructionResult, error) {
	result := &abi.ReconstructionResult{
		Address: abi.ChecksumAddress(address),
		ChainID: chainID,
	}

	entries, err := a.loader.Load(ctx, address, chainID)
	if err != nil {
		// Treated as "no verified source"; the bytecode path still runs.
		a.log.Debug().Err(err).Str("address", address).Msg("verified lookup failed")
	}
	if len(entries) > 0 {
		result.Source = abi.SourceVerified
		result.Entries = entries
		return result, nil
	}

	code, err := a.reader.CodeAt(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("fetch bytecode for %s: %w", address, err)
	}
	skeleton, err := bytecode.Skeleton(code)
	if err != nil {
		if errors.Is(err, bytecode.ErrNoCode) {
			return nil, &NoContractError{Address: address}
		}
		return nil, err
	}

	result.Source = abi.SourceBytecode
	result.Entries = a.resolveSkeleton(ctx, skeleton)
	return result, nil
}

// resolveSkeleton enriches placeholder entries with signatures from the
// databases. Entries nothing resolved keep their func_<selector> names;
// a partial result is legitimate output, not a failure.
func (a *Assembler) resolveSkeleton(ctx context.Context, skeleton []abi.Entry) []abi.Entry {
	selectors := make([]string, len(skeleton))
	for i := range skeleton {
		selectors[i] = skeleton[i].Selector
	}

	resolved := a.resolver.ResolveAll(ctx, selectors)
	for i := range skeleton {
		entry := resolved[strings.ToLower(skeleton[i].Selector)]
		if entry == nil {
			continue
		}
		skeleton[i].Name = entry.Name
		skeleton[i].Inputs = entry.Inputs
		skeleton[i].Outputs = entry.Outputs
		// The dispatcher guess saw no CALLVALUE guard; a signature database
		// cannot know that, so payable survives unless returns marked it view.
		if entry.Mutability == abi.MutabilityView || skeleton[i].Mutability != abi.MutabilityPayable {
			skeleton[i].Mutability = entry.Mutability
		}
	}
	return skeleton
}

// proxyCheck unwinds a delegate pattern by assembling the implementation
// with the same chain id and merging its entries in; the implementation
// wins selector collisions. Detection failures leave the result standalone.
func (a *Assembler) proxyCheck(ctx context.Context, result *abi.ReconstructionResult, chainID int64, depth int, visited map[string]bool) {
	selectors := functionSelectors(result.Entries)

	info, err := proxy.Detect(ctx, a.reader, common.HexToAddress(result.Address), selectors, a.log)
	if err != nil || info == nil {
		return
	}

	implAddress := info.Implementation.Hex()
	result.Proxy = &abi.ProxyInfo{
		Implementation: implAddress,
		Mechanism:      info.Mechanism,
	}

	if depth >= maxProxyHops || visited[strings.ToLower(implAddress)] {
		a.log.Warn().
			Str("proxy", result.Address).
			Str("implementation", implAddress).
			Msg("proxy chain too deep or cyclic, not unwinding further")
		return
	}

	implResult, err := a.assemble(ctx, implAddress, chainID, depth+1, visited)
	if err != nil {
		// A dangling implementation pointer degrades to the proxy's own
		// surface; the outer assembly still succeeds.
		a.log.Warn().Err(err).
			Str("proxy", result.Address).
			Str("implementation", implAddress).
			Msg("failed to assemble proxy implementation")
		return
	}
	result.Merge(implResult)
}

func functionSelectors(entries []abi.Entry) []string {
	var selectors []string
	for i := range entries {
		if entries[i].Kind == abi.KindFunction && entries[i].Selector != "" {
			selectors = append(selectors, entries[i].Selector)
		}
	}
	return selectors
}
