package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"namereg/pkg/domain"
	"namereg/pkg/platform/sentinel"
)

// HTTPClient queries a balance-oracle endpoint over HTTP:
//
//	GET {base}/balances/{token}/{identity} -> {"balance": <integer>}
type HTTPClient struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTPClient builds a client for the given oracle base URL and
// reference-token address.
func NewHTTPClient(base, tokenAddress string) *HTTPClient {
	return &HTTPClient{
		base:   strings.TrimRight(base, "/"),
		token:  tokenAddress,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type balanceResponse struct {
	Balance uint64 `json:"balance"`
}

func (c *HTTPClient) BalanceOf(ctx context.Context, identity domain.Identity) (uint64, error) {
	endpoint := fmt.Sprintf("%s/balances/%s/%s",
		c.base, url.PathEscape(c.token), url.PathEscape(identity.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build oracle request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle request: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		// Unknown account: the oracle has no balance for it.
		return 0, nil
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("oracle status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		return 0, fmt.Errorf("oracle status %d", resp.StatusCode)
	}

	var body balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode oracle response: %w", err)
	}
	return body.Balance, nil
}
