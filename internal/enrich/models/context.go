package models

import (
	"github.com/google/uuid"

	entitymodels "fides/internal/entity/models"
)

// RunContext is the working state of one enrichment run: a snapshot of the
// entity taken when the run started, plus the identifiers and attributes
// accumulated by earlier steps. Engines and enrichers read prerequisites
// from it and record derived identifiers through AddDerived so that later
// steps see what earlier steps produced without re-reading the store.
//
// A RunContext belongs to a single run and is not safe for concurrent use.
type RunContext struct {
	EntityID uuid.UUID
	Country  string
	Name     string

	identifiers map[entitymodels.IdentifierType]entitymodels.Identifier
	attrs       map[string]string
	derived     []entitymodels.Identifier
}

// NewRunContext snapshots an entity into a run context.
func NewRunContext(e *entitymodels.LegalEntity) *RunContext {
	rc := &RunContext{
		EntityID:    e.ID,
		Country:     e.Country,
		Name:        e.Name,
		identifiers: make(map[entitymodels.IdentifierType]entitymodels.Identifier, len(e.Identifiers)),
		attrs:       make(map[string]string),
	}
	for _, id := range e.Identifiers {
		rc.identifiers[id.Type] = id
	}
	return rc
}

// Has reports whether an identifier of the given type is present, whether
// from the snapshot or added during this run.
func (rc *RunContext) Has(typ entitymodels.IdentifierType) bool {
	_, ok := rc.identifiers[typ]
	return ok
}

// Value returns the identifier value for a type, or "" if absent.
func (rc *RunContext) Value(typ entitymodels.IdentifierType) string {
	return rc.identifiers[typ].Value
}

// Identifier returns the full identifier for a type.
func (rc *RunContext) Identifier(typ entitymodels.IdentifierType) (entitymodels.Identifier, bool) {
	id, ok := rc.identifiers[typ]
	return id, ok
}

// AddDerived records a newly derived identifier: visible to later steps via
// Has/Value and collected for persistence via Derived.
func (rc *RunContext) AddDerived(id entitymodels.Identifier) {
	rc.identifiers[id.Type] = id
	rc.derived = append(rc.derived, id)
}

// Derived returns the identifiers added during this run, in order.
func (rc *RunContext) Derived() []entitymodels.Identifier {
	return rc.derived
}

// SetAttr stores a run-scoped attribute carried between steps, such as the
// register court code a fetch surfaced for later EUID formatting.
func (rc *RunContext) SetAttr(key, value string) {
	if value == "" {
		return
	}
	rc.attrs[key] = value
}

// Attr returns a run-scoped attribute, or "" if absent.
func (rc *RunContext) Attr(key string) string {
	return rc.attrs[key]
}

// NationalNumber returns the entity's national registry number for its
// country, or ("", "") when the country has no registered type or the
// number is absent.
func (rc *RunContext) NationalNumber() (entitymodels.IdentifierType, string) {
	typ := entitymodels.NationalRegistryType(rc.Country)
	if typ == "" || !rc.Has(typ) {
		return "", ""
	}
	return typ, rc.Value(typ)
}
