// Package chainreader is the minimal chain access capability the pipeline
// needs: code, storage, eth_call and the chain id. Anything chain-specific
// (broken null-parameter defaults, rate limits) belongs in an adapter
// implementing Reader, never in the core.
package chainreader

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Reader is the read-only capability consumed by the reconstruction core.
type Reader interface {
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
	StorageAt(ctx context.Context, address common.Address, slot common.Hash) ([]byte, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// EthClient adapts go-ethereum's ethclient to the Reader capability,
// always reading at the latest block.
type EthClient struct {
	client *ethclient.Client
}

// Dial connects to an RPC endpoint and wraps it as a Reader.
func Dial(rawURL string) (*EthClient, error) {
	client, err := ethclient.Dial(rawURL)
	if err != nil {
		return nil, err
	}
	return &EthClient{client: client}, nil
}

func (e *EthClient) Close() {
	e.client.Close()
}

func (e *EthClient) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	return e.client.CodeAt(ctx, address, nil)
}

func (e *EthClient) StorageAt(ctx context.Context, address common.Address, slot common.Hash) ([]byte, error) {
	return e.client.StorageAt(ctx, address, slot, nil)
}

func (e *EthClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return e.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

func (e *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return e.client.ChainID(ctx)
}
