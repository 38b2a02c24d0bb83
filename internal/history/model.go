// Package history is the append-only audit trail for quote documents.
// Entries are only ever inserted; there is no update or delete path.
package history

import "time"

// Action classifies a ledger entry.
type Action string

const (
	ActionCreated       Action = "created"
	ActionEdited        Action = "edited"
	ActionStatusChanged Action = "status_changed"
	ActionEmailSent     Action = "email_sent"
	ActionSigned        Action = "signed"
	ActionRefused       Action = "refused"
	ActionDuplicated    Action = "duplicated"
	ActionConverted     Action = "converted"
)

// Entry is a single immutable audit record attached to a quote.
// ActorID is 0 for events originating from the public, unauthenticated
// signature flow.
type Entry struct {
	ID         int64     `json:"id"`
	QuoteID    string    `json:"quote_id"`
	ActorID    int64     `json:"actor_id"`
	Action     Action    `json:"action"`
	Details    string    `json:"details"`
	OccurredAt time.Time `json:"occurred_at"`
}
