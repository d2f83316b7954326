package cache

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/portdeveloper/abi-recon/internal/abi"
)

// Ristretto is the Store used by long-running deployments: admission-policed
// and bounded, so a scan over many addresses cannot grow memory without
// limit. Verified results are stored without TTL; unverified ones expire
// after the freshness window.
type Ristretto struct {
	cache *ristretto.Cache[string, *abi.ReconstructionResult]
}

func NewRistretto(maxResults int64) (*Ristretto, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *abi.ReconstructionResult]{
		NumCounters: maxResults * 10,
		MaxCost:     maxResults,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{cache: cache}, nil
}

func (r *Ristretto) Get(address string, chainID int64) (*abi.ReconstructionResult, bool) {
	return r.cache.Get(Key(address, chainID))
}

func (r *Ristretto) Put(address string, chainID int64, result *abi.ReconstructionResult, verified bool) {
	key := Key(address, chainID)
	if verified {
		r.cache.Set(key, result, 1)
	} else {
		r.cache.SetWithTTL(key, result, 1, FreshnessWindow)
	}
	// Sets are buffered; wait so an immediately following Get hits.
	r.cache.Wait()
}

func (r *Ristretto) Clear() {
	r.cache.Clear()
}

func (r *Ristretto) Close() {
	r.cache.Close()
}
