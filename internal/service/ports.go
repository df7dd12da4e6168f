package service

import (
	"context"
	"io"

	"listing-composer/internal/model"
)

// File is one image selected by the user.
type File interface {
	Name() string
	Size() int64
	ContentType() string
	Open() (io.ReadCloser, error)
}

// ObjectStore is the storage capability images are uploaded to. Keys are
// chosen by the caller and must be unique.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	ResolvePublicReference(ctx context.Context, key string) (string, error)
}

// ObjectDeleter is implemented by stores that can remove orphaned objects.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// ListingCreator performs the listing-create request. A returned error means
// the request did not produce a well-formed response.
type ListingCreator interface {
	CreateListing(ctx context.Context, req model.ListingRequest) (CreateResponse, error)
}

// CreateResponse is a well-formed listing-create response: either Rejected
// with Message, or carrying the new ListingID.
type CreateResponse struct {
	Rejected  bool
	Message   string
	ListingID string
}

// DraftRepository persists draft sessions.
type DraftRepository interface {
	Get(ctx context.Context, id string) (*model.DraftSession, error)
	Save(ctx context.Context, s *model.DraftSession) error
	Delete(ctx context.Context, id string) error
}
