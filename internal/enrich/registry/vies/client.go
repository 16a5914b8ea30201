// Package vies validates EU VAT numbers against the European Commission's
// VIES REST service. Official API, no credentials, no artificial throttle.
//
// A definitive "invalid" answer is data, not an error: derivation chains use
// it to try the next suffix variant. Member-state outages surface as
// transient errors so they are never read as "this VAT does not exist".
package vies

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fides/internal/enrich/registry"
)

const sourceName = "vies"

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Source() string { return sourceName }

type checkRequest struct {
	CountryCode string `json:"countryCode"`
	VATNumber   string `json:"vatNumber"`
}

type checkResponse struct {
	Valid     bool   `json:"valid"`
	UserError string `json:"userError"`
	Name      string `json:"name"`
}

// CheckVAT validates a VAT number split into country prefix and number body.
func (c *Client) CheckVAT(ctx context.Context, country, number string) (bool, error) {
	payload, err := json.Marshal(checkRequest{CountryCode: country, VATNumber: number})
	if err != nil {
		return false, registry.NewError(registry.CategoryInternal, sourceName, "encode request", err)
	}

	url := c.baseURL + "/check-vat-number"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, registry.NewError(registry.CategoryInternal, sourceName, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, registry.ClassifyTransport(sourceName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, registry.NewError(registry.CategoryRateLimited, sourceName, "rate limited", nil)
	case resp.StatusCode >= 500:
		return false, registry.NewError(registry.CategoryOutage, sourceName,
			fmt.Sprintf("upstream returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return false, registry.NewError(registry.CategoryBadData, sourceName,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, registry.ClassifyTransport(sourceName, err)
	}
	var result checkResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, registry.NewError(registry.CategoryBadData, sourceName, "malformed check-vat response", err)
	}

	// MS_UNAVAILABLE and friends mean the member state's backend is down,
	// not that the number is invalid.
	switch result.UserError {
	case "", "VALID", "INVALID":
		return result.Valid, nil
	case "MS_UNAVAILABLE", "MS_MAX_CONCURRENT_REQ", "TIMEOUT", "SERVICE_UNAVAILABLE", "GLOBAL_MAX_CONCURRENT_REQ":
		return false, registry.NewError(registry.CategoryOutage, sourceName,
			fmt.Sprintf("member state unavailable: %s", result.UserError), nil)
	default:
		return false, registry.NewError(registry.CategoryBadData, sourceName,
			fmt.Sprintf("unexpected user error %q", result.UserError), nil)
	}
}
