package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of mutation an entry records.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Entity types with audited mutations.
const (
	EntityEvaluation = "evaluation"
)

// Change is one field-level difference. A nil value means "not set".
type Change struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// Changes groups field changes by section. Order within a section follows the
// order in which the mutation touched the fields.
type Changes map[string][]Change

// Len is the total number of field changes across sections.
func (c Changes) Len() int {
	n := 0
	for _, section := range c {
		n += len(section)
	}
	return n
}

// Actor is who performed the mutation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// SystemActor attributes writes made without an authenticated caller.
var SystemActor = Actor{ID: "system", Name: "system", Role: "system"}

// Entry is the immutable record of one mutation. Entries are appended in the
// same transaction as the mutation they describe and never updated.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	Actor      Actor     `json:"actor"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Action     Action    `json:"action"`
	Changes    Changes   `json:"changes"`
	RequestID  string    `json:"requestId,omitempty"`
	ClientIP   string    `json:"clientIp,omitempty"`
	Device     string    `json:"device,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
