package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeoLookup resolves an IP address to a country code. Implementations
// never fail the pipeline: on any error they return "unknown".
type GeoLookup interface {
	Country(ctx context.Context, ip string) string
}

const unknownCountry = "unknown"

// HTTPGeoLookup queries a JSON geo endpoint ({endpoint}/{ip} returning
// {"countryCode": "US", ...}).
type HTTPGeoLookup struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPGeoLookup(endpoint string) *HTTPGeoLookup {
	return &HTTPGeoLookup{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

func (g *HTTPGeoLookup) Country(ctx context.Context, ip string) string {
	if ip == "" {
		return unknownCountry
	}

	url := fmt.Sprintf("%s/%s", g.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return unknownCountry
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return unknownCountry
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unknownCountry
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return unknownCountry
	}

	var payload struct {
		CountryCode string `json:"countryCode"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.CountryCode == "" {
		return unknownCountry
	}

	return strings.ToLower(payload.CountryCode)
}

// NoopGeoLookup is used when no geo endpoint is configured.
type NoopGeoLookup struct{}

func (NoopGeoLookup) Country(context.Context, string) string {
	return unknownCountry
}
