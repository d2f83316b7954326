// Package cache persists assembled reconstruction results keyed by
// (address, chain id). Verified results are durable; bytecode-derived ones
// go stale and are re-assembled after a freshness window.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/portdeveloper/abi-recon/internal/abi"
)

// FreshnessWindow is how long an unverified reconstruction is served before
// it is treated as a miss and rebuilt. Verified results never expire.
const FreshnessWindow = 7 * 24 * time.Hour

// Store is the result cache consumed by the assembler. The persistence
// mechanism is the host's choice; both implementations here are in-memory.
type Store interface {
	Get(address string, chainID int64) (*abi.ReconstructionResult, bool)
	Put(address string, chainID int64, result *abi.ReconstructionResult, verified bool)
	Clear()
}

// Key lowercases the address so lookups are case-insensitive.
func Key(address string, chainID int64) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(address))
}

type record struct {
	result   *abi.ReconstructionResult
	storedAt time.Time
	verified bool
}

// Memory is the default Store: a mutex-guarded map with write-once-then-read
// records.
type Memory struct {
	mu      sync.RWMutex
	records map[string]record
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]record),
		now:     time.Now,
	}
}

func (m *Memory) Get(address string, chainID int64) (*abi.ReconstructionResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[Key(address, chainID)]
	if !ok {
		return nil, false
	}
	if !rec.verified && m.now().Sub(rec.storedAt) > FreshnessWindow {
		return nil, false
	}
	return rec.result, true
}

func (m *Memory) Put(address string, chainID int64, result *abi.ReconstructionResult, verified bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[Key(address, chainID)] = record{
		result:   result,
		storedAt: m.now(),
		verified: verified,
	}
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]record)
}
