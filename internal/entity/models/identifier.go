package models

import (
	"time"

	dErrors "fides/pkg/domain-errors"
)

// IdentifierType is the closed set of identifier kinds the registry tracks.
type IdentifierType string

const (
	// National registry numbers (country-specific entry points).
	TypeKVK IdentifierType = "KVK" // NL Kamer van Koophandel number
	TypeHRB IdentifierType = "HRB" // DE Handelsregister B number
	TypeKBO IdentifierType = "KBO" // BE Kruispuntbank van Ondernemingen number

	TypeRSIN   IdentifierType = "RSIN"
	TypeVAT    IdentifierType = "VAT"
	TypeEUID   IdentifierType = "EUID"
	TypeLEI    IdentifierType = "LEI"
	TypePeppol IdentifierType = "PEPPOL"
)

// nationalRegistryTypes maps a country to its national registry number type.
// Adding a jurisdiction means extending this table and registering an engine;
// nothing else branches on country.
var nationalRegistryTypes = map[string]IdentifierType{
	"NL": TypeKVK,
	"DE": TypeHRB,
	"BE": TypeKBO,
}

// NationalRegistryType returns the national registry number type for a
// country, or "" if the country has no registered type.
func NationalRegistryType(country string) IdentifierType {
	return nationalRegistryTypes[country]
}

// VerificationStatus is the trust classification of a stored identifier.
//
// Invariants:
//   - Automated enrichers set only StatusValid or StatusInvalid.
//   - StatusPending is reserved for manual entry paths outside this core.
//   - StatusExpired marks a previously valid identifier due for re-check.
type VerificationStatus string

const (
	StatusValid         VerificationStatus = "VALID"
	StatusInvalid       VerificationStatus = "INVALID"
	StatusPending       VerificationStatus = "PENDING"
	StatusExpired       VerificationStatus = "EXPIRED"
	StatusNotVerifiable VerificationStatus = "NOT_VERIFIABLE"
)

// AutomatedAssignable reports whether an automated enricher may write this
// status.
func (s VerificationStatus) AutomatedAssignable() bool {
	return s == StatusValid || s == StatusInvalid
}

// Identifier is a (type, value) pair plus provenance metadata. Identifiers
// are append-only from the enrichment core's perspective: never deleted or
// overwritten, at most one per (entity, type).
type Identifier struct {
	Type      IdentifierType     `json:"type"`
	Value     string             `json:"value"`
	Country   string             `json:"country,omitempty"` // empty for global types (LEI, EUID, PEPPOL)
	Source    string             `json:"source"`            // registry or derivation that produced it
	Status    VerificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewIdentifier validates and constructs an identifier.
func NewIdentifier(typ IdentifierType, value, country, source string, status VerificationStatus, now time.Time) (Identifier, error) {
	if typ == "" {
		return Identifier{}, dErrors.New(dErrors.CodeInvariantViolation, "identifier type cannot be empty")
	}
	if value == "" {
		return Identifier{}, dErrors.New(dErrors.CodeInvariantViolation, "identifier value cannot be empty")
	}
	if status == "" {
		status = StatusPending
	}
	return Identifier{
		Type:      typ,
		Value:     value,
		Country:   country,
		Source:    source,
		Status:    status,
		CreatedAt: now,
	}, nil
}

// MarkExpired flags the identifier for re-verification. Only valid
// identifiers can expire.
func (i *Identifier) MarkExpired() error {
	if i.Status != StatusValid {
		return dErrors.New(dErrors.CodeInvariantViolation, "only VALID identifiers can expire")
	}
	i.Status = StatusExpired
	return nil
}
