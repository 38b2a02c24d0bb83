// Package customers is the narrow read-side interface to customer records.
// Customer CRUD is owned by the generic entity-management surface; the quote
// subsystem only resolves references for validation and snapshot rendering.
package customers

import "time"

type Customer struct {
	ID        int64     `json:"id"`
	GarageID  int64     `json:"garage_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}
