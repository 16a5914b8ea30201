// Package handelsregister queries the German Handelsregister via its public
// search form. Scrape-based source: requests pass through a process-wide
// throttle gate with a minimum inter-request delay.
//
// Populated record attributes: court_code, register_type.
package handelsregister

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"fides/internal/enrich/registry"
	"fides/internal/enrich/registry/throttle"
	entitymodels "fides/internal/entity/models"
)

const sourceName = "handelsregister"

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

// resultRow matches one hit in the search result page, capturing the court
// name and the register number, e.g. "Amtsgericht München HRB 123456".
var resultRow = regexp.MustCompile(`Amtsgericht\s+([\p{L} .-]+?)\s+(HRA|HRB)\s+(\d+)`)

// LookupByIdentifier searches the register for an HRB/HRA number. The court
// is not part of the key, so the first row matching the exact number wins;
// the extracted court code is what EUID generation later needs.
func (c *Client) LookupByIdentifier(ctx context.Context, typ entitymodels.IdentifierType, value, country string) (*registry.Record, error) {
	if typ != entitymodels.TypeHRB {
		return nil, registry.NewError(registry.CategoryInternal, sourceName,
			fmt.Sprintf("unsupported identifier type %s", typ), nil)
	}

	if err := c.gate.Wait(ctx); err != nil {
		return nil, registry.ClassifyTransport(sourceName, err)
	}

	form := url.Values{
		"registerNummer": {value},
		"registerArt":    {"HRB"},
	}
	endpoint := c.baseURL + "/rp_web/erweitertesuche.xhtml"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, registry.NewError(registry.CategoryInternal, sourceName, "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, registry.ClassifyTransport(sourceName, err)
	}

	return parseSearchPage(string(body), value)
}

func parseSearchPage(page, number string) (*registry.Record, error) {
	for _, m := range resultRow.FindAllStringSubmatch(page, -1) {
		court, registerType, got := m[1], m[2], m[3]
		if got != number {
			continue
		}
		return &registry.Record{
			Source:  sourceName,
			Country: "DE",
			Name:    extractCompanyName(page),
			Attributes: map[string]string{
				registry.AttrCourtCode:    courtCode(court),
				registry.AttrRegisterType: registerType,
			},
			RetrievedAt: time.Now(),
		}, nil
	}
	return nil, registry.NotFoundError(sourceName, fmt.Sprintf("no register entry for number %s", number))
}

// companyNameRow captures the firm name cell preceding a register reference.
var companyNameRow = regexp.MustCompile(`class="marginLeft20">([^<]+)</`)

func extractCompanyName(page string) string {
	if m := companyNameRow.FindStringSubmatch(page); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// courtCode maps a court display name to the register court code used in
// EUIDs. The portal renders names, not codes; unknown courts fall back to
// an upper-cased compact form, which downstream treats as best-effort.
var courtCodes = map[string]string{
	"Berlin (Charlottenburg)": "F1103",
	"München":                 "D2601",
	"Hamburg":                 "K1101",
	"Köln":                    "R3306",
	"Frankfurt am Main":       "M1201",
	"Stuttgart":               "D3310",
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

func courtCode(court string) string {
	court = strings.TrimSpace(court)
	if code, ok := courtCodes[court]; ok {
		return code
	}
	return strings.ToUpper(nonAlnum.ReplaceAllString(court, ""))
}
