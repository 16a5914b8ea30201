// Package gleif queries the Global LEI Foundation's public directory.
// Official JSON:API; fair use, no key, no artificial throttle.
//
// Registration-number lookups filter on entity.registeredAs and the legal
// address country as two independent parameters — the API cannot filter by
// registration-authority code, only by country. Name search is a prefix
// match on entity.legalName, country-filtered and size-bounded.
//
// Populated record attributes: lei.
package gleif

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

const sourceName = "gleif"

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

type leiRecords struct {
	Data []struct {
		Attributes struct {
			LEI    string `json:"lei"`
			Entity struct {
				LegalName struct {
					Name string `json:"name"`
				} `json:"legalName"`
				LegalAddress struct {
					Country string `json:"country"`
				} `json:"legalAddress"`
			} `json:"entity"`
		} `json:"attributes"`
	} `json:"data"`
}

// LookupByIdentifier searches LEI records registered under a national
// registry number. A response with zero records is a definitive NotFound.
func (c *Client) LookupByIdentifier(ctx context.Context, typ entitymodels.IdentifierType, value, country string) (*registry.Record, error) {
	query := url.Values{
		"filter[entity.registeredAs]":         {value},
		"filter[entity.legalAddress.country]": {country},
		"page[size]":                          {"10"},
	}
	records, err := c.fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, registry.NotFoundError(sourceName,
			fmt.Sprintf("no LEI registered for %s number %s", country, value))
	}
	return &records[0], nil
}

// SearchByName is the fallback search: legal-name prefix match within a
// country, bounded by limit. Callers own disambiguation.
func (c *Client) SearchByName(ctx context.Context, name, country string, limit int) ([]registry.Record, error) {
	query := url.Values{
		"filter[entity.legalName]":            {name + "*"},
		"filter[entity.legalAddress.country]": {country},
		"page[size]":                          {fmt.Sprintf("%d", limit)},
	}
	return c.fetch(ctx, query)
}

func (c *Client) fetch(ctx context.Context, query url.Values) ([]registry.Record, error) {
	endpoint := c.baseURL + "/lei-records?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, registry.NewError(registry.CategoryInternal, sourceName, "build request", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, registry.ClassifyTransport(sourceName, err)
	}
	defer resp.Body.Close()

	switch {
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
	var parsed leiRecords
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, registry.NewError(registry.CategoryBadData, sourceName, "malformed lei-records response", err)
	}

	records := make([]registry.Record, 0, len(parsed.Data))
	now := time.Now()
	for _, d := range parsed.Data {
		records = append(records, registry.Record{
			Source:  sourceName,
			Country: d.Attributes.Entity.LegalAddress.Country,
			Name:    d.Attributes.Entity.LegalName.Name,
			Attributes: map[string]string{
				registry.AttrLEI: d.Attributes.LEI,
			},
			RetrievedAt: now,
		})
	}
	return records, nil
}
