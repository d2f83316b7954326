package sigdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const openChainBaseURL = "https://api.openchain.xyz"

// OpenChain queries the openchain.xyz signature database, the fallback
// source when 4byte.directory has no match or is unreachable. Standard TLS
// verification applies; an unreachable host is just a miss.
type OpenChain struct {
	BaseURL string
	client  *http.Client
}

func NewOpenChain() *OpenChain {
	return &OpenChain{
		BaseURL: openChainBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (o *OpenChain) Name() string { return "openchain.xyz" }

type openChainResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		Function map[string][]struct {
			Name     string `json:"name"`
			Filtered bool   `json:"filtered"`
		} `json:"function"`
	} `json:"result"`
}

// Lookup asks for filtered results, which the service pre-ranks with junk
// submissions removed; candidate order is preserved as the ranking.
func (o *OpenChain) Lookup(ctx context.Context, selector string) ([]Candidate, error) {
	endpoint := fmt.Sprintf("%s/signature-database/v1/lookup?function=%s&filter=true",
		o.BaseURL, url.QueryEscape(selector))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openchain API returned status %d", resp.StatusCode)
	}

	var decoded openChainResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if !decoded.OK {
		return nil, fmt.Errorf("openchain API rejected lookup for %s", selector)
	}

	var candidates []Candidate
	for rank, match := range decoded.Result.Function[selector] {
		if match.Filtered {
			continue
		}
		candidates = append(candidates, Candidate{Signature: match.Name, Rank: rank})
	}
	return candidates, nil
}
