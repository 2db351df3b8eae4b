package interactive

import (
	"context"
	"fmt"
	"net/http"
)

// DefaultDiscoveryURL is the HTTP endpoint listing candidate session hosts.
const DefaultDiscoveryURL = "https://mixer.com/api/v1/interactive/hosts"

// Host is one candidate session endpoint, ordered best first.
type Host struct {
	Address string `json:"address"`
}

// DiscoveryClient fetches the ordered endpoint list. This is the only HTTP
// interaction in the client.
type DiscoveryClient struct {
	url  string
	http *http.Client
}

func NewDiscoveryClient(url string, httpClient *http.Client) *DiscoveryClient {
	if url == "" {
		url = DefaultDiscoveryURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DiscoveryClient{url: url, http: httpClient}
}

// Hosts returns the candidate endpoints in server-preferred order. An empty
// list is ErrNoHostsFound.
func (d *DiscoveryClient) Hosts(ctx context.Context) ([]Host, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("interactive: discovery: %w", err)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("interactive: discovery: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("interactive: discovery: unexpected status %s", resp.Status)
	}

	var hosts []Host
	if err := json.NewDecoder(resp.Body).Decode(&hosts); err != nil {
		return nil, fmt.Errorf("interactive: discovery: decode: %w", err)
	}
	if len(hosts) == 0 {
		return nil, ErrNoHostsFound
	}
	return hosts, nil
}
