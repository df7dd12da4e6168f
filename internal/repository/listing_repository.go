package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"listing-composer/internal/model"
)

var ErrListingNotFound = errors.New("listing not found")

const listingsSchema = `
CREATE TABLE IF NOT EXISTS listings (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    description    TEXT NOT NULL,
    address        TEXT NOT NULL,
    type           TEXT NOT NULL,
    bedrooms       INTEGER NOT NULL,
    bathrooms      INTEGER NOT NULL,
    regular_price  DOUBLE PRECISION NOT NULL,
    discount_price DOUBLE PRECISION NOT NULL,
    offer          BOOLEAN NOT NULL DEFAULT FALSE,
    parking        BOOLEAN NOT NULL DEFAULT FALSE,
    furnished      BOOLEAN NOT NULL DEFAULT FALSE,
    image_urls     TEXT[] NOT NULL DEFAULT '{}',
    user_ref       TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS listings_user_ref_idx ON listings (user_ref, created_at DESC);
CREATE INDEX IF NOT EXISTS listings_type_idx ON listings (type, created_at DESC);
`

type ListingRepository struct {
	DB *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{DB: db}
}

// Создать таблицу, если её нет
func (r *ListingRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, listingsSchema); err != nil {
		return fmt.Errorf("ListingRepository.EnsureSchema: %w", err)
	}
	return nil
}

// Создать объявление
func (r *ListingRepository) Create(ctx context.Context, l *model.Listing) error {
	_, err := r.DB.NamedExecContext(ctx, `
        INSERT INTO listings
            (id, name, description, address, type, bedrooms, bathrooms, regular_price, discount_price,
             offer, parking, furnished, image_urls, user_ref, created_at, updated_at)
        VALUES
            (:id, :name, :description, :address, :type, :bedrooms, :bathrooms, :regular_price, :discount_price,
             :offer, :parking, :furnished, :image_urls, :user_ref, :created_at, :updated_at)
    `, l)
	return err
}

// Получить объявление по ID
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	err := r.DB.GetContext(ctx, &l, `SELECT * FROM listings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Объявления пользователя (с пагинацией)
func (r *ListingRepository) ListByUser(ctx context.Context, userRef string, limit, offset int) ([]model.Listing, error) {
	list := []model.Listing{}
	err := r.DB.SelectContext(ctx, &list, `
		SELECT * FROM listings
		WHERE user_ref = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userRef, limit, offset)
	return list, err
}

// Лента объявлений с фильтрами
func (r *ListingRepository) GetFiltered(ctx context.Context, f model.ListingFilter) ([]model.Listing, error) {
	query, args := filteredQuery(f)
	list := []model.Listing{}
	if err := r.DB.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("ListingRepository.GetFiltered: %w", err)
	}
	return list, nil
}

func filteredQuery(f model.ListingFilter) (string, []interface{}) {
	query := "SELECT * FROM listings WHERE TRUE"
	args := []interface{}{}
	idx := 1

	flags := []struct {
		column string
		value  *bool
	}{
		{"offer", f.Offer},
		{"parking", f.Parking},
		{"furnished", f.Furnished},
	}
	for _, fl := range flags {
		if fl.value == nil {
			continue
		}
		query += fmt.Sprintf(" AND %s = $%d", fl.column, idx)
		args = append(args, *fl.value)
		idx++
	}
	if f.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", idx)
		args = append(args, f.Type)
		idx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, f.Limit, f.Offset)
	return query, args
}
