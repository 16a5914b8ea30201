// Package kvk queries the Dutch Kamer van Koophandel Basisprofiel API.
// Official REST API with an API key; no artificial throttling beyond
// respecting 429 responses.
//
// Populated record attributes: rsin (when the entity has one), legal_form.
package kvk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

const sourceName = "kvk"

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Source() string { return sourceName }

// basisprofiel is the subset of the API response this system reads.
type basisprofiel struct {
	KVKNummer string `json:"kvkNummer"`
	RSIN      string `json:"rsin"`
	Naam      string `json:"naam"`
	Embedded  struct {
		Hoofdvestiging struct {
			RechtsvormCode string `json:"rechtsvormCode"`
		} `json:"hoofdvestiging"`
	} `json:"_embedded"`
	Rechtsvorm string `json:"rechtsvorm"`
}

func (c *Client) LookupByIdentifier(ctx context.Context, typ entitymodels.IdentifierType, value, country string) (*registry.Record, error) {
	if typ != entitymodels.TypeKVK {
		return nil, registry.NewError(registry.CategoryInternal, sourceName,
			fmt.Sprintf("unsupported identifier type %s", typ), nil)
	}

	url := fmt.Sprintf("%s/basisprofielen/%s", c.baseURL, value)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, registry.NewError(registry.CategoryInternal, sourceName, "build request", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, registry.ClassifyTransport(sourceName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, registry.NotFoundError(sourceName, fmt.Sprintf("no registration for KVK number %s", value))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, registry.NewError(registry.CategoryAuthentication, sourceName, "API key rejected", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, registry.NewError(registry.CategoryRateLimited, sourceName, "rate limited", nil)
	case resp.StatusCode >= 500:
		return nil, registry.NewError(registry.CategoryOutage, sourceName,
			fmt.Sprintf("upstream returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, registry.NewError(registry.CategoryBadData, sourceName,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, registry.ClassifyTransport(sourceName, err)
	}
	var profile basisprofiel
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, registry.NewError(registry.CategoryBadData, sourceName, "malformed basisprofiel response", err)
	}

	attrs := map[string]string{}
	if profile.RSIN != "" {
		attrs[registry.AttrRSIN] = profile.RSIN
	}
	legalForm := profile.Rechtsvorm
	if legalForm == "" {
		legalForm = profile.Embedded.Hoofdvestiging.RechtsvormCode
	}
	if legalForm != "" {
		attrs[registry.AttrLegalForm] = legalForm
	}

	return &registry.Record{
		Source:      sourceName,
		Country:     "NL",
		Name:        profile.Naam,
		Attributes:  attrs,
		RetrievedAt: time.Now(),
	}, nil
}
