package verified

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/portdeveloper/abi-recon/internal/abi"
)

// Endpoint is one Etherscan-family API deployment. Keys stay in the
// environment so a deployment can add chains without code changes.
type Endpoint struct {
	BaseURL string
	EnvKey  string
}

// DefaultEndpoints covers the explorer APIs this service ships with.
func DefaultEndpoints() map[int64]Endpoint {
	return map[int64]Endpoint{
		1:        {BaseURL: "https://api.etherscan.io/api", EnvKey: "ETHEREUM_API_KEY"},
		10:       {BaseURL: "https://api-optimistic.etherscan.io/api", EnvKey: "OPTIMISM_API_KEY"},
		56:       {BaseURL: "https://api.bscscan.com/api", EnvKey: "BSC_API_KEY"},
		11155111: {BaseURL: "https://api-sepolia.etherscan.io/api", EnvKey: "SEPOLIA_API_KEY"},
	}
}

// Etherscan loads author-published ABIs from block-explorer verification
// APIs.
type Etherscan struct {
	Endpoints map[int64]Endpoint
	client    *http.Client
}

func NewEtherscan() *Etherscan {
	return &Etherscan{
		Endpoints: DefaultEndpoints(),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *Etherscan) Name() string { return "etherscan" }

// Fetch returns (nil, nil) both for chains without a configured endpoint
// and for contracts the explorer has no verified source for.
func (e *Etherscan) Fetch(ctx context.Context, address string, chainID int64) ([]abi.Entry, error) {
	endpoint, ok := e.Endpoints[chainID]
	if !ok {
		return nil, nil
	}
	apiKey := os.Getenv(endpoint.EnvKey)
	if apiKey == "" {
		return nil, fmt.Errorf("API key %s not set", endpoint.EnvKey)
	}

	reqURL := fmt.Sprintf("%s?module=contract&action=getabi&address=%s&apikey=%s",
		endpoint.BaseURL, url.QueryEscape(address), url.QueryEscape(apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.Status != "1" {
		// "NOTOK" with a not-verified result string is the expected miss.
		return nil, nil
	}
	return abi.ParseJSON([]byte(result.Result))
}
