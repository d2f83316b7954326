package verified

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/portdeveloper/abi-recon/internal/abi"
)

const (
	sourcifyServerURL = "https://sourcify.dev/server"
	sourcifyRepoURL   = "https://repo.sourcify.dev"
)

// Sourcify loads author-published ABIs from the decentralized Sourcify
// verification registry. It works without any API key, which is why it is
// tried before the explorer APIs.
type Sourcify struct {
	ServerURL string
	RepoURL   string
	client    *http.Client
}

func NewSourcify() *Sourcify {
	return &Sourcify{
		ServerURL: sourcifyServerURL,
		RepoURL:   sourcifyRepoURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Sourcify) Name() string { return "sourcify" }

// Fetch checks verification status first, then pulls metadata.json from the
// matching repo path. An unverified contract is (nil, nil), not an error.
func (s *Sourcify) Fetch(ctx context.Context, address string, chainID int64) ([]abi.Entry, error) {
	status, err := s.checkStatus(ctx, address, chainID)
	if err != nil {
		return nil, err
	}

	var match string
	switch status {
	case "perfect":
		match = "full_match"
	case "partial":
		match = "partial_match"
	default:
		return nil, nil
	}

	metadataURL := fmt.Sprintf("%s/contracts/%s/%d/%s/metadata.json",
		s.RepoURL, match, chainID, abi.ChecksumAddress(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sourcify metadata fetch returned status %d", resp.StatusCode)
	}

	var metadata struct {
		Output struct {
			ABI json.RawMessage `json:"abi"`
		} `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, err
	}
	if len(metadata.Output.ABI) == 0 {
		return nil, nil
	}
	return abi.ParseJSON(metadata.Output.ABI)
}

func (s *Sourcify) checkStatus(ctx context.Context, address string, chainID int64) (string, error) {
	checkURL := fmt.Sprintf("%s/check-by-addresses?addresses=%s&chainIds=%d",
		s.ServerURL, url.QueryEscape(address), chainID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sourcify check returned status %d", resp.StatusCode)
	}

	var checks []struct {
		Address string `json:"address"`
		Status  string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&checks); err != nil {
		return "", err
	}
	if len(checks) == 0 {
		return "", nil
	}
	return checks[0].Status, nil
}
