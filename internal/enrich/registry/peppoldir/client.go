// Package peppoldir queries the public Peppol Directory search API.
// Participants are keyed by scheme-qualified identifiers ("0106:33031431");
// the scheme encodes which national number the participant registered under.
//
// Populated record attributes: peppol_participant_id.
package peppoldir

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

const sourceName = "peppol-directory"

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

type searchResponse struct {
	TotalResult int `json:"total-result"`
	Matches     []struct {
		ParticipantID struct {
			Scheme string `json:"scheme"`
			Value  string `json:"value"`
		} `json:"participantID"`
		Entities []struct {
			Name []struct {
				Name string `json:"name"`
			} `json:"name"`
			CountryCode string `json:"countryCode"`
		} `json:"entities"`
	} `json:"matches"`
}

// LookupByIdentifier probes the directory for a participant registered under
// a scheme-qualified value. The value must already carry its scheme prefix
// ("0106:33031431"); the identifier type is informational only.
func (c *Client) LookupByIdentifier(ctx context.Context, typ entitymodels.IdentifierType, value, country string) (*registry.Record, error) {
	query := url.Values{"participant": {"iso6523-actorid-upis::" + value}}
	records, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, registry.NotFoundError(sourceName,
			fmt.Sprintf("participant %s not registered", value))
	}
	return &records[0], nil
}

// SearchByName queries on business name. Directory name data is
// self-reported and sparse; callers must treat matches with care.
func (c *Client) SearchByName(ctx context.Context, name, country string, limit int) ([]registry.Record, error) {
	query := url.Values{
		"name":    {name},
		"country": {country},
		"rpc":     {fmt.Sprintf("%d", limit)},
	}
	return c.search(ctx, query)
}

func (c *Client) search(ctx context.Context, query url.Values) ([]registry.Record, error) {
	endpoint := c.baseURL + "/search/1.0/json?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, registry.NewError(registry.CategoryInternal, sourceName, "build request", err)
	}

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
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, registry.NewError(registry.CategoryBadData, sourceName, "malformed search response", err)
	}

	records := make([]registry.Record, 0, len(parsed.Matches))
	now := time.Now()
	for _, m := range parsed.Matches {
		rec := registry.Record{
			Source: sourceName,
			Attributes: map[string]string{
				registry.AttrParticipantID: m.ParticipantID.Value,
			},
			RetrievedAt: now,
		}
		if len(m.Entities) > 0 {
			rec.Country = m.Entities[0].CountryCode
			if len(m.Entities[0].Name) > 0 {
				rec.Name = m.Entities[0].Name[0].Name
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
