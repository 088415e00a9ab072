package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type apiProxy struct {
	Address  string `json:"proxy_address"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type apiResponse struct {
	Results []apiProxy `json:"results"`
}

func (p *Pool) fetchAPI(ctx context.Context) ([]entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webshare API HTTP %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("webshare API decode: %w", err)
	}

	return parseAPIResults(body.Results), nil
}

func parseAPIResults(results []apiProxy) []entry {
	var proxies []entry
	for _, r := range results {
		if r.Address == "" || r.Port == 0 || r.Username == "" || r.Password == "" {
			continue
		}
		proxies = append(proxies, entry{
			server:   fmt.Sprintf("http://%s:%d", r.Address, r.Port),
			username: r.Username,
			password: r.Password,
		})
	}
	return proxies
}
