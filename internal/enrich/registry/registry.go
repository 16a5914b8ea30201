// Package registry defines the uniform contract for external data source
// adapters: national company registries, the VAT validation service, the
// global LEI directory and the Peppol participant directory.
//
// Adapters return a normalized Record or a typed Error. The taxonomy keeps
// "definitively not found" (terminal, proceed to fallback) strictly apart
// from transient failures (network, rate limit, timeout) — conflating the
// two would make the orchestrator conclude an identifier "is not available"
// because a registry happened to be down.
package registry

import (
	"context"
	"time"

	entitymodels "fides/internal/entity/models"
)

// Record is the normalized result of a registry lookup. Source-specific
// detail lives in Attributes; adapters document the keys they populate.
type Record struct {
	Source      string            `json:"source"`
	Country     string            `json:"country,omitempty"`
	Name        string            `json:"name,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	RetrievedAt time.Time         `json:"retrieved_at"`
}

// Attribute returns a named attribute, or "" if absent.
func (r *Record) Attribute(key string) string {
	if r == nil || r.Attributes == nil {
		return ""
	}
	return r.Attributes[key]
}

// Well-known attribute keys.
const (
	AttrRSIN          = "rsin"
	AttrLegalForm     = "legal_form"
	AttrCourtCode     = "court_code"
	AttrRegisterType  = "register_type"
	AttrLEI           = "lei"
	AttrParticipantID = "participant_id"
	AttrVATValid      = "vat_valid"
)

// Client is the uniform lookup contract every adapter implements.
type Client interface {
	// Source returns a stable identifier for the external source, used in
	// cache keys, metrics labels and Record.Source.
	Source() string

	// LookupByIdentifier fetches the record keyed by an identifier. Returns
	// a typed Error with CategoryNotFound when the source definitively has
	// no record, or a transient-class Error otherwise.
	LookupByIdentifier(ctx context.Context, typ entitymodels.IdentifierType, value, country string) (*Record, error)
}

// NameSearcher is implemented by sources that support searching by legal
// name. Results are ordered by relevance and bounded by limit; name search
// responses are never cached.
type NameSearcher interface {
	SearchByName(ctx context.Context, name, country string, limit int) ([]Record, error)
}

// VATValidator is the confirmation service contract (VIES). A definitive
// "invalid" answer is data, not an error, so it is part of the result.
type VATValidator interface {
	// CheckVAT validates a VAT number. valid=false with nil error means the
	// service definitively rejected the number.
	CheckVAT(ctx context.Context, country, number string) (valid bool, err error)
}
