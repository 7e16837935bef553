package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"eventbridge/internal/address"
)

const defaultUserAgent = "eventbridge"

type Client struct {
	host       string
	userAgent  string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nominatim error (%d): %s", e.Status, e.Body)
}

// NewClient wraps a Nominatim-compatible search endpoint. Pass an http.Client
// with a timeout; the resolver treats timeouts like a no-match.
func NewClient(httpClient *http.Client, host, userAgent string) *Client {
	if host == "" {
		host = "https://nominatim.openstreetmap.org"
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

type searchResult struct {
	Lon string `json:"lon"`
	Lat string `json:"lat"`
}

// Geocode returns the best match for the query, or nil when the service has
// no match for it.
func (c *Client) Geocode(ctx context.Context, query string) (*address.Point, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	lon, err := decimal.NewFromString(results[0].Lon)
	if err != nil {
		return nil, fmt.Errorf("bad longitude %q: %w", results[0].Lon, err)
	}
	lat, err := decimal.NewFromString(results[0].Lat)
	if err != nil {
		return nil, fmt.Errorf("bad latitude %q: %w", results[0].Lat, err)
	}
	return &address.Point{Lon: lon, Lat: lat}, nil
}
