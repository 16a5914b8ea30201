// Package kbo queries the Belgian Kruispuntbank van Ondernemingen public
// search. Scrape-based source behind a process-wide throttle gate.
//
// Populated record attributes: legal_form.
package kbo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"fides/internal/enrich/registry"
	"fides/internal/enrich/registry/throttle"
	entitymodels "fides/internal/entity/models"
)

const sourceName = "kbo"

type Client struct {
	baseURL string
	http    *http.Client
	gate    *throttle.Gate
}

func New(baseURL string, timeout, scrapeInterval time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		gate:    throttle.NewGate(scrapeInterval),
	}
}

func (c *Client) Source() string { return sourceName }

var (
	denominationRow = regexp.MustCompile(`(?s)Naam:.*?<td[^>]*>\s*([^<]+?)\s*<`)
	legalFormRow    = regexp.MustCompile(`(?s)Rechtsvorm:.*?<td[^>]*>\s*([^<]+?)\s*<`)
	notFoundMarker  = "Geen onderneming gevonden"
)

func (c *Client) LookupByIdentifier(ctx context.Context, typ entitymodels.IdentifierType, value, country string) (*registry.Record, error) {
	if typ != entitymodels.TypeKBO {
		return nil, registry.NewError(registry.CategoryInternal, sourceName,
			fmt.Sprintf("unsupported identifier type %s", typ), nil)
	}

	if err := c.gate.Wait(ctx); err != nil {
		return nil, registry.ClassifyTransport(sourceName, err)
	}

	url := fmt.Sprintf("%s/kbopub/toonondernemingps.html?ondernemingsnummer=%s", c.baseURL, value)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, registry.NewError(registry.CategoryInternal, sourceName, "build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, registry.ClassifyTransport(sourceName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, registry.NotFoundError(sourceName, fmt.Sprintf("no enterprise with number %s", value))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, registry.NewError(registry.CategoryRateLimited, sourceName, "rate limited", nil)
	case resp.StatusCode >= 500:
		return nil, registry.NewError(registry.CategoryOutage, sourceName,
			fmt.Sprintf("upstream returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, registry.NewError(registry.CategoryBadData, sourceName,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, registry.ClassifyTransport(sourceName, err)
	}
	return parseEnterprisePage(string(body), value)
}

func parseEnterprisePage(page, number string) (*registry.Record, error) {
	if strings.Contains(page, notFoundMarker) {
		return nil, registry.NotFoundError(sourceName, fmt.Sprintf("no enterprise with number %s", number))
	}

	record := &registry.Record{
		Source:      sourceName,
		Country:     "BE",
		Attributes:  map[string]string{},
		RetrievedAt: time.Now(),
	}
	if m := denominationRow.FindStringSubmatch(page); m != nil {
		record.Name = strings.TrimSpace(m[1])
	}
	if m := legalFormRow.FindStringSubmatch(page); m != nil {
		record.Attributes[registry.AttrLegalForm] = strings.TrimSpace(m[1])
	}
	if record.Name == "" {
		return nil, registry.NewError(registry.CategoryBadData, sourceName, "could not parse enterprise page", nil)
	}
	return record, nil
}
