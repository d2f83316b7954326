package verified

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portdeveloper/abi-recon/internal/abi"
)

type stubSource struct {
	name    string
	entries []abi.Entry
	err     error
	calls   int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, address string, chainID int64) ([]abi.Entry, error) {
	s.calls++
	return s.entries, s.err
}

func TestLoaderFirstNonEmptyWins(t *testing.T) {
	first := &stubSource{name: "first", entries: []abi.Entry{
		{Kind: abi.KindFunction, Name: "transfer", Selector: "0xa9059cbb"},
	}}
	second := &stubSource{name: "second"}

	loader := NewLoader(zerolog.Nop(), first, second)
	entries, err := loader.Load(context.Background(), usdtAddress, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Zero(t, second.calls)
}

func TestLoaderSkipsFailingSource(t *testing.T) {
	first := &stubSource{name: "first", err: errors.New("registry unreachable")}
	second := &stubSource{name: "second", entries: []abi.Entry{
		{Kind: abi.KindFunction, Name: "totalSupply", Selector: "0x18160ddd"},
	}}

	loader := NewLoader(zerolog.Nop(), first, second)
	entries, err := loader.Load(context.Background(), usdtAddress, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "totalSupply", entries[0].Name)
}

func TestLoaderAllMiss(t *testing.T) {
	loader := NewLoader(zerolog.Nop(), &stubSource{name: "first"}, &stubSource{name: "second"})

	entries, err := loader.Load(context.Background(), usdtAddress, 1)
	require.NoError(t, err)
	assert.Nil(t, entries)
}
