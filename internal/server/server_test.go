package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portdeveloper/abi-recon/internal/abi"
	"github.com/portdeveloper/abi-recon/internal/cache"
	"github.com/portdeveloper/abi-recon/internal/chainreader"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const tokenAddr = "0x1000000000000000000000000000000000000001"

type fakeReader struct {
	code map[string][]byte
}

func (f *fakeReader) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return f.code[strings.ToLower(addr.Hex())], nil
}

func (f *fakeReader) StorageAt(ctx context.Context, addr common.Address, slot common.Hash) ([]byte, error) {
	return make([]byte, 32), nil
}

func (f *fakeReader) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return nil, nil
}

func (f *fakeReader) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

type fakeLoader struct {
	entries map[string][]abi.Entry
}

func (f *fakeLoader) Load(ctx context.Context, address string, chainID int64) ([]abi.Entry, error) {
	return f.entries[strings.ToLower(address)], nil
}

type emptyResolver struct{}

func (emptyResolver) ResolveAll(ctx context.Context, selectors []string) map[string]*abi.Entry {
	return nil
}

func newTestServer(reader chainreader.Reader, loader *fakeLoader) *Server {
	if loader == nil {
		loader = &fakeLoader{}
	}
	s := New(cache.NewMemory(), loader, emptyResolver{}, zerolog.Nop())
	s.dial = func(rawURL string) (chainreader.Reader, error) {
		if reader == nil {
			return nil, errors.New("connection refused")
		}
		return reader, nil
	}
	return s
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestGetABIVerifiedContract(t *testing.T) {
	reader := &fakeReader{code: map[string][]byte{}}
	loader := &fakeLoader{entries: map[string][]abi.Entry{
		strings.ToLower(tokenAddr): {
			{Kind: abi.KindFunction, Name: "transfer", Selector: "0xa9059cbb",
				Inputs:     []abi.Param{{Name: "to", Type: "address"}, {Name: "amount", Type: "uint256"}},
				Outputs:    []abi.Param{{Name: "", Type: "bool"}},
				Mutability: abi.MutabilityNonpayable},
		},
	}}
	s := newTestServer(reader, loader)

	w := doRequest(s, http.MethodGet, "/abi/1/"+tokenAddr+"/rpc.example.com")

	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Address string          `json:"address"`
		ChainID int64           `json:"chainId"`
		Source  string          `json:"source"`
		Entries json.RawMessage `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, abi.ChecksumAddress(tokenAddr), result.Address)
	assert.Equal(t, int64(1), result.ChainID)
	assert.Equal(t, "verified", result.Source)
	assert.Contains(t, string(result.Entries), `"transfer"`)
}

func TestGetABINonNumericChainID(t *testing.T) {
	s := newTestServer(&fakeReader{}, nil)

	w := doRequest(s, http.MethodGet, "/abi/mainnet/"+tokenAddr+"/rpc.example.com")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "chainId")
}

func TestGetABIInvalidAddress(t *testing.T) {
	s := newTestServer(&fakeReader{}, nil)

	w := doRequest(s, http.MethodGet, "/abi/1/0x123/rpc.example.com")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid address")
}

func TestGetABINoContract(t *testing.T) {
	s := newTestServer(&fakeReader{code: map[string][]byte{}}, nil)

	w := doRequest(s, http.MethodGet, "/abi/1/"+tokenAddr+"/rpc.example.com")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no contract")
}

func TestGetABIDialFailure(t *testing.T) {
	s := newTestServer(nil, nil)

	w := doRequest(s, http.MethodGet, "/abi/1/"+tokenAddr+"/rpc.example.com")

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestClearCacheEndpoint(t *testing.T) {
	s := newTestServer(&fakeReader{}, nil)

	w := doRequest(s, http.MethodDelete, "/cache")

	assert.Equal(t, http.StatusNoContent, w.Code)
}
