// Package catalog implements colormatch.CatalogProvider against an
// external filament-catalog HTTP service, used when the local
// FilamentLibrary and RFID lookups in AMS reconciliation both miss.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/printfleet/printfleet/internal/domain/colormatch"
)

// Provider queries an external catalog service by material+hex.
type Provider struct {
	baseURL string
	client  *http.Client
}

// New constructs a Provider. timeout defaults to 5s when zero.
func New(baseURL string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Provider{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{Timeout: timeout}}
}

type catalogResponse struct {
	Brand       string `json:"brand"`
	ProductName string `json:"product_name"`
	Material    string `json:"material"`
	ColorHex    string `json:"color_hex"`
}

// Lookup implements colormatch.CatalogProvider.
func (p *Provider) Lookup(ctx context.Context, material, hex string) (*colormatch.CatalogMatch, error) {
	q := url.Values{"material": {material}, "hex": {hex}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/filaments?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}

	var cr catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}
	return &colormatch.CatalogMatch{
		Brand:       cr.Brand,
		ProductName: cr.ProductName,
		Material:    cr.Material,
		ColorHex:    cr.ColorHex,
	}, nil
}
