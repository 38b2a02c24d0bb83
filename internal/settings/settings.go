// Package settings reads the tenant's legal profile and quote parameters.
// The VAT rate and validity window are read once when a quote is created or
// edited and snapshotted onto the document; existing quotes never follow
// later settings changes.
package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/garagiste-app/garagiste/internal/platform/db"
)

var ErrNotFound = errors.New("garage settings not found")

// Settings is the tenant profile consumed by quote creation and rendering.
type Settings struct {
	GarageID          int64   `json:"garage_id"`
	CompanyName       string  `json:"company_name"`
	Address           string  `json:"address"`
	Phone             string  `json:"phone"`
	Email             string  `json:"email"`
	SIRET             string  `json:"siret"`
	VATRate           float64 `json:"vat_rate"`
	QuoteValidityDays int     `json:"quote_validity_days"`
}

type Repository interface {
	Get(ctx context.Context, garageID int64) (*Settings, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(q db.DBTX) Repository {
	return &repository{db: q}
}

func (r *repository) Get(ctx context.Context, garageID int64) (*Settings, error) {
	var s Settings
	err := r.db.QueryRow(ctx, `
		SELECT garage_id, company_name, address, phone, email, siret, vat_rate, quote_validity_days
		FROM garage_settings
		WHERE garage_id = $1
	`, garageID).Scan(&s.GarageID, &s.CompanyName, &s.Address, &s.Phone, &s.Email, &s.SIRET, &s.VATRate, &s.QuoteValidityDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
