package service

import "errors"

var (
	ErrTooManyImages        = errors.New("too many images")
	ErrUploadTransferFailed = errors.New("image upload failed")
	ErrUploadInProgress     = errors.New("an upload batch is already running")
	ErrIndexOutOfRange      = errors.New("image index out of range")
	ErrUnknownField         = errors.New("unknown field")
	ErrFieldType            = errors.New("value has the wrong type for field")
	ErrNonFiniteNumber      = errors.New("numeric value must be finite")
	ErrInvalidPropertyType  = errors.New("property type must be sale or rent")
	ErrUnknownFlag          = errors.New("unknown flag")
	ErrValidationRejected   = errors.New("listing rejected")
	ErrTransportFailed      = errors.New("listing service unavailable")
	ErrDraftNotFound        = errors.New("draft not found")
	ErrOperationInProgress  = errors.New("another operation is in progress for this draft")
	ErrDraftSubmitted       = errors.New("draft was already submitted")
)

// Messages shown to the user, kept in the draft session until the next attempt.
const (
	MsgTooManyImages        = "You can only upload 6 images per listing"
	MsgUploadFailed         = "Image upload failed (2 mb max per image)"
	MsgImageRequired        = "at least one image required"
	MsgDiscountAboveRegular = "discount must not exceed regular price"
)
