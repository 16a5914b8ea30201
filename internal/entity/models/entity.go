package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "fides/pkg/domain-errors"
)

// LegalEntity is the aggregate root for a registered member company.
//
// Invariants:
//   - Country is an ISO 3166-1 alpha-2 code (upper case)
//   - Name is non-empty and at most 256 characters
//   - At most one Identifier per type (enforced here and by the store's
//     unique index)
//   - Identifiers are append-only: the enrichment core proposes additions
//     and never mutates entity attributes other than appending identifiers
type LegalEntity struct {
	ID          uuid.UUID    `json:"id"`
	Country     string       `json:"country"`
	Name        string       `json:"name"`
	Identifiers []Identifier `json:"identifiers"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewLegalEntity validates invariants and constructs an entity.
func NewLegalEntity(id uuid.UUID, country, name string, now time.Time) (*LegalEntity, error) {
	if len(country) != 2 || country != strings.ToUpper(country) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "country must be an upper-case ISO 3166-1 alpha-2 code")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity name cannot be empty")
	}
	if len(name) > 256 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity name must be 256 characters or less")
	}
	return &LegalEntity{
		ID:        id,
		Country:   country,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasIdentifier reports whether an identifier of the given type is present.
func (e *LegalEntity) HasIdentifier(typ IdentifierType) bool {
	for _, id := range e.Identifiers {
		if id.Type == typ {
			return true
		}
	}
	return false
}

// IdentifierValue returns the stored value for a type, or "" if absent.
func (e *LegalEntity) IdentifierValue(typ IdentifierType) string {
	for _, id := range e.Identifiers {
		if id.Type == typ {
			return id.Value
		}
	}
	return ""
}

// AppendIdentifier adds an identifier, enforcing type uniqueness.
func (e *LegalEntity) AppendIdentifier(id Identifier) error {
	if e.HasIdentifier(id.Type) {
		return dErrors.Newf(dErrors.CodeConflict, "identifier of type %s already present", id.Type)
	}
	e.Identifiers = append(e.Identifiers, id)
	e.UpdatedAt = id.CreatedAt
	return nil
}
