package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/garagiste-app/garagiste/internal/platform/db"
)

var ErrNotFound = errors.New("customer not found")

type Repository interface {
	Get(ctx context.Context, garageID, id int64) (*Customer, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(q db.DBTX) Repository {
	return &repository{db: q}
}

func (r *repository) Get(ctx context.Context, garageID, id int64) (*Customer, error) {
	var c Customer
	err := r.db.QueryRow(ctx, `
		SELECT id, garage_id, name, email, phone, address, created_at
		FROM customers
		WHERE garage_id = $1 AND id = $2
	`, garageID, id).Scan(&c.ID, &c.GarageID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
