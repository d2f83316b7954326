package sigdb

import (
	"context"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/portdeveloper/abi-recon/internal/abi"
)

const (
	// Per-source attempt budget. One slow database must not stall the
	// whole reconstruction; a timed-out source is the same as a miss.
	lookupTimeout  = 2500 * time.Millisecond
	lookupAttempts = 2
	retryDelay     = 150 * time.Millisecond
)

// Resolver walks an ordered chain of signature sources until one of them
// yields a signature that recomputes to the queried selector.
type Resolver struct {
	sources []Source
	log     zerolog.Logger
}

func NewResolver(log zerolog.Logger, sources ...Source) *Resolver {
	return &Resolver{sources: sources, log: log}
}

// DefaultResolver wires the production source chain: 4byte.directory first,
// openchain.xyz as fallback.
func DefaultResolver(log zerolog.Logger) *Resolver {
	return NewResolver(log, NewFourByte(), NewOpenChain())
}

// Resolve returns the resolved entry for a selector, or (nil, nil) when no
// source knows it; unresolved selectors are steady-state, not an error.
// A candidate whose recomputed selector disagrees with the queried one is
// discarded: 4-byte databases contain deliberately mined garbage.
func (r *Resolver) Resolve(ctx context.Context, selector string) (*abi.Entry, error) {
	selector, err := abi.NormalizeSelector(selector)
	if err != nil {
		return nil, err
	}

	for _, source := range r.sources {
		candidates, err := r.lookup(ctx, source, selector)
		if err != nil {
			r.log.Debug().Err(err).
				Str("source", source.Name()).
				Str("selector", selector).
				Msg("signature source unavailable")
			continue
		}

		for _, cand := range candidates {
			entry, err := abi.ParseSignature(cand.Signature)
			if err != nil {
				r.log.Debug().Err(err).Str("signature", cand.Signature).Msg("unparseable signature")
				continue
			}
			if !strings.EqualFold(entry.Selector, selector) {
				r.log.Debug().
					Str("signature", cand.Signature).
					Str("want", selector).
					Str("got", entry.Selector).
					Msg("discarding signature with mismatched selector")
				continue
			}
			entry.Selector = selector
			return entry, nil
		}
	}
	return nil, nil
}

func (r *Resolver) lookup(ctx context.Context, source Source, selector string) ([]Candidate, error) {
	var candidates []Candidate
	err := retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
			defer cancel()
			var err error
			candidates, err = source.Lookup(attemptCtx, selector)
			return err
		},
		retry.Attempts(lookupAttempts),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	return candidates, err
}

type resolved struct {
	selector string
	entry    *abi.Entry
}

// ResolveAll resolves a batch of selectors concurrently. Selectors are
// independent, so lookups fan out and the map collects whatever resolved;
// missing keys simply keep their placeholders.
func (r *Resolver) ResolveAll(ctx context.Context, selectors []string) map[string]*abi.Entry {
	results := make(chan resolved, len(selectors))
	for _, sel := range selectors {
		go func(sel string) {
			entry, err := r.Resolve(ctx, sel)
			if err != nil {
				entry = nil
			}
			results <- resolved{selector: sel, entry: entry}
		}(sel)
	}

	out := make(map[string]*abi.Entry, len(selectors))
	for range selectors {
		res := <-results
		if res.entry != nil {
			out[strings.ToLower(res.selector)] = res.entry
		}
	}
	return out
}
