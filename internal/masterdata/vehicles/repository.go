package vehicles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/garagiste-app/garagiste/internal/platform/db"
)

var ErrNotFound = errors.New("vehicle not found")

type Repository interface {
	Get(ctx context.Context, garageID, id int64) (*Vehicle, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(q db.DBTX) Repository {
	return &repository{db: q}
}

func (r *repository) Get(ctx context.Context, garageID, id int64) (*Vehicle, error) {
	var v Vehicle
	err := r.db.QueryRow(ctx, `
		SELECT id, garage_id, customer_id, make, model, registration, year, created_at
		FROM vehicles
		WHERE garage_id = $1 AND id = $2
	`, garageID, id).Scan(&v.ID, &v.GarageID, &v.CustomerID, &v.Make, &v.Model, &v.Registration, &v.Year, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}
