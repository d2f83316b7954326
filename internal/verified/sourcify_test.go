package verified

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portdeveloper/abi-recon/internal/abi"
)

const usdtAddress = "0xdAC17F958D2ee523a2206206994597C13D831ec7"

func newTestSourcify(status string, metadata string) (*Sourcify, func()) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/check-by-addresses":
			fmt.Fprintf(w, `[{"address":%q,"status":%q}]`, usdtAddress, status)
		case r.URL.Path == fmt.Sprintf("/contracts/full_match/1/%s/metadata.json", usdtAddress),
			r.URL.Path == fmt.Sprintf("/contracts/partial_match/1/%s/metadata.json", usdtAddress):
			w.Write([]byte(metadata))
		default:
			http.NotFound(w, r)
		}
	}))

	source := NewSourcify()
	source.ServerURL = server.URL
	source.RepoURL = server.URL
	return source, server.Close
}

func TestSourcifyFetchPerfectMatch(t *testing.T) {
	metadata := `{"output":{"abi":[
		{"type":"function","name":"transfer","stateMutability":"nonpayable",
		 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
		 "outputs":[{"name":"","type":"bool"}]}
	]}}`
	source, stop := newTestSourcify("perfect", metadata)
	defer stop()

	entries, err := source.Fetch(context.Background(), usdtAddress, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "transfer", entries[0].Name)
	assert.Equal(t, "0xa9059cbb", entries[0].Selector)
	assert.Equal(t, abi.KindFunction, entries[0].Kind)
}

func TestSourcifyFetchPartialMatch(t *testing.T) {
	metadata := `{"output":{"abi":[{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]}}`
	source, stop := newTestSourcify("partial", metadata)
	defer stop()

	entries, err := source.Fetch(context.Background(), usdtAddress, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "totalSupply", entries[0].Name)
}

func TestSourcifyFetchUnverified(t *testing.T) {
	source, stop := newTestSourcify("false", "")
	defer stop()

	entries, err := source.Fetch(context.Background(), usdtAddress, 1)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestSourcifyFetchServerDown(t *testing.T) {
	source := NewSourcify()
	source.ServerURL = "http://127.0.0.1:1"
	source.RepoURL = "http://127.0.0.1:1"

	_, err := source.Fetch(context.Background(), usdtAddress, 1)
	assert.Error(t, err)
}
