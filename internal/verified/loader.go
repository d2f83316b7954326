// Package verified loads author-published ABIs from verification
// registries. Anything found here is trusted as-is: contract authors
// published it, so no selector recomputation check applies.
package verified

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/portdeveloper/abi-recon/internal/abi"
)

const fetchTimeout = 5 * time.Second

// Source is one authoritative ABI repository. A miss is (nil, nil); errors
// are reserved for transport/parse failures the loader may log and skip.
type Source interface {
	Name() string
	Fetch(ctx context.Context, address string, chainID int64) ([]abi.Entry, error)
}

// Loader walks its sources in preference order and returns the first
// non-empty ABI.
type Loader struct {
	sources []Source
	log     zerolog.Logger
}

func NewLoader(log zerolog.Logger, sources ...Source) *Loader {
	return &Loader{sources: sources, log: log}
}

// DefaultLoader wires the production chain: Sourcify first (keyless,
// decentralized), explorer APIs second.
func DefaultLoader(log zerolog.Logger) *Loader {
	return NewLoader(log, NewSourcify(), NewEtherscan())
}

// Load returns (nil, nil) when no source has a published ABI; that is the
// expected trigger for the bytecode fallback, not an error.
func (l *Loader) Load(ctx context.Context, address string, chainID int64) ([]abi.Entry, error) {
	for _, source := range l.sources {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		entries, err := source.Fetch(fetchCtx, address, chainID)
		cancel()
		if err != nil {
			l.log.Debug().Err(err).
				Str("source", source.Name()).
				Str("address", address).
				Msg("verified source unavailable")
			continue
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}
	return nil, nil
}
