package sigdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const fourByteBaseURL = "https://www.4byte.directory"

// FourByte queries the 4byte.directory community database.
type FourByte struct {
	BaseURL string
	client  *http.Client
}

func NewFourByte() *FourByte {
	return &FourByte{
		BaseURL: fourByteBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *FourByte) Name() string { return "4byte.directory" }

type fourByteResponse struct {
	Count   int `json:"count"`
	Results []struct {
		ID           int    `json:"id"`
		Signature    string `json:"text_signature"`
		HexSignature string `json:"hex_signature"`
	} `json:"results"`
}

// Lookup returns candidates ranked by directory id: the earliest submission
// for a selector is nearly always the real signature, later ones tend to be
// mined collisions.
func (f *FourByte) Lookup(ctx context.Context, selector string) ([]Candidate, error) {
	endpoint := fmt.Sprintf("%s/api/v1/signatures/?hex_signature=%s", f.BaseURL, url.QueryEscape(selector))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("4byte API returned status %d", resp.StatusCode)
	}

	var decoded fourByteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	sort.Slice(decoded.Results, func(i, j int) bool {
		return decoded.Results[i].ID < decoded.Results[j].ID
	})

	candidates := make([]Candidate, 0, len(decoded.Results))
	for rank, result := range decoded.Results {
		candidates = append(candidates, Candidate{Signature: result.Signature, Rank: rank})
	}
	return candidates, nil
}
