// Package vehicles resolves vehicle references for the quote subsystem.
package vehicles

import "time"

type Vehicle struct {
	ID           int64     `json:"id"`
	GarageID     int64     `json:"garage_id"`
	CustomerID   int64     `json:"customer_id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Registration string    `json:"registration"`
	Year         int       `json:"year"`
	CreatedAt    time.Time `json:"created_at"`
}
