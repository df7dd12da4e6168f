package model

import (
	"time"

	"github.com/lib/pq"
)

// ListingRequest is the body of a listing-create call. Field names follow the
// listing API wire format.
type ListingRequest struct {
	Name          string         `db:"name" json:"name"`
	Description   string         `db:"description" json:"description"`
	Address       string         `db:"address" json:"address"`
	Type          string         `db:"type" json:"type"` // sale/rent
	Bedrooms      int            `db:"bedrooms" json:"bedrooms"`
	Bathrooms     int            `db:"bathrooms" json:"bathrooms"`
	RegularPrice  float64        `db:"regular_price" json:"regularPrice"`
	DiscountPrice float64        `db:"discount_price" json:"discountPrice"`
	Offer         bool           `db:"offer" json:"offer"`
	Parking       bool           `db:"parking" json:"parking"`
	Furnished     bool           `db:"furnished" json:"furnished"`
	ImageURLs     pq.StringArray `db:"image_urls" json:"imageUrls"`
	UserRef       string         `db:"user_ref" json:"userRef"`
}

// Listing is a persisted listing record.
type Listing struct {
	ID string `db:"id" json:"_id"`
	ListingRequest
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ListingFilter selects listings for the public feed. Nil flags and an empty
// Type match everything.
type ListingFilter struct {
	Offer     *bool
	Parking   *bool
	Furnished *bool
	Type      string
	Limit     int
	Offset    int
}
