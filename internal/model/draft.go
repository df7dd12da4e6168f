package model

import "time"

// MaxImages is the upper bound on images attached to one listing.
const MaxImages = 6

// PropertyType says whether the property is offered for sale or for rent.
type PropertyType string

const (
	PropertyTypeSale PropertyType = "sale"
	PropertyTypeRent PropertyType = "rent"
)

func (t PropertyType) Valid() bool {
	return t == PropertyTypeSale || t == PropertyTypeRent
}

// Flag names one of the boolean amenities of a draft.
type Flag string

const (
	FlagHasOffer    Flag = "hasOffer"
	FlagHasParking  Flag = "hasParking"
	FlagIsFurnished Flag = "isFurnished"
)

// ImageRef is the durable URL of an uploaded image. The first one is the cover.
type ImageRef string

// ListingDraft is a listing that has not been created yet. Range tags are
// checked at submission only.
type ListingDraft struct {
	Name          string       `json:"name" validate:"min=10,max=62"`
	Description   string       `json:"description" validate:"required"`
	Address       string       `json:"address" validate:"required"`
	PropertyType  PropertyType `json:"propertyType" validate:"oneof=sale rent"`
	Bedrooms      int          `json:"bedrooms" validate:"min=1,max=10"`
	Bathrooms     int          `json:"bathrooms" validate:"min=1,max=10"`
	RegularPrice  float64      `json:"regularPrice" validate:"min=50,max=10000000"`
	DiscountPrice float64      `json:"discountPrice" validate:"min=0,max=10000000"`
	HasOffer      bool         `json:"hasOffer"`
	HasParking    bool         `json:"hasParking"`
	IsFurnished   bool         `json:"isFurnished"`
	Images        []ImageRef   `json:"images" validate:"max=6"`
}

// NewListingDraft returns a draft with the form defaults.
func NewListingDraft() ListingDraft {
	return ListingDraft{
		PropertyType:  PropertyTypeRent,
		Bedrooms:      1,
		Bathrooms:     1,
		RegularPrice:  50,
		DiscountPrice: 0,
		Images:        []ImageRef{},
	}
}

// Clone returns a copy that shares no memory with d.
func (d ListingDraft) Clone() ListingDraft {
	out := d
	out.Images = make([]ImageRef, len(d.Images))
	copy(out.Images, d.Images)
	return out
}

// ToRequest builds the listing-create body for the given owner.
func (d ListingDraft) ToRequest(ownerID string) ListingRequest {
	urls := make([]string, len(d.Images))
	for i, ref := range d.Images {
		urls[i] = string(ref)
	}
	return ListingRequest{
		Name:          d.Name,
		Description:   d.Description,
		Address:       d.Address,
		Type:          string(d.PropertyType),
		Bedrooms:      d.Bedrooms,
		Bathrooms:     d.Bathrooms,
		RegularPrice:  d.RegularPrice,
		DiscountPrice: d.DiscountPrice,
		Offer:         d.HasOffer,
		Parking:       d.HasParking,
		Furnished:     d.IsFurnished,
		ImageURLs:     urls,
		UserRef:       ownerID,
	}
}

// DraftSession is a draft owned by one user together with the last error of
// each operation. ListingID is set once the draft was created as a listing
// but the session could not be removed.
type DraftSession struct {
	ID               string       `json:"id"`
	OwnerID          string       `json:"ownerId"`
	Draft            ListingDraft `json:"draft"`
	ImageUploadError string       `json:"imageUploadError,omitempty"`
	SubmissionError  string       `json:"submissionError,omitempty"`
	ListingID        string       `json:"listingId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}
