// Package audit captures the who/what/when trail of the enrichment core:
// entity creation, enrichment runs and every identifier addition. Events are
// transport-agnostic so stores and sinks can fan out.
package audit

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionEntityCreated    Action = "entity_created"
	ActionEnrichmentRun    Action = "enrichment_run"
	ActionIdentifierAdded  Action = "identifier_added"
	ActionEnrichmentFailed Action = "enrichment_failed"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	EntityID   uuid.UUID `json:"entity_id"`
	Action     Action    `json:"action"`
	Identifier string    `json:"identifier,omitempty"` // identifier type, for identifier_added
	Value      string    `json:"value,omitempty"`
	Outcome    string    `json:"outcome,omitempty"` // run summary, e.g. "added=2 errors=0"
	Caller     string    `json:"caller,omitempty"`  // authenticated subject
	RequestID  string    `json:"request_id,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
}
