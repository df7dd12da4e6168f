package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"listing-composer/internal/logger"
	"listing-composer/internal/model"
)

// SubmissionController runs the local pre-flight checks and, when they pass,
// sends exactly one create request.
type SubmissionController struct {
	api        ListingCreator
	validate   *validator.Validate
	submitting atomic.Bool
}

// draftValidator is shared by every controller; it caches struct metadata and
// is safe for concurrent use.
var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func NewSubmissionController(api ListingCreator) *SubmissionController {
	return &SubmissionController{api: api, validate: draftValidator}
}

// Submitting reports whether a create request is in flight.
func (s *SubmissionController) Submitting() bool { return s.submitting.Load() }

// Submit checks d and sends it. A call made while another create request is
// in flight is refused with ErrOperationInProgress and sends nothing.
func (s *SubmissionController) Submit(ctx context.Context, d model.ListingDraft, ownerID string) (model.SubmissionResult, error) {
	log := logger.FromContext(ctx).WithFields(logger.Fields{"component": "SubmissionController", "user_ref": ownerID})

	if msg := s.preflight(d); msg != "" {
		log.Info("Listing rejected before submission", logger.Fields{"reason": msg})
		return model.ValidationRejected(msg), nil
	}

	if !s.submitting.CompareAndSwap(false, true) {
		return model.SubmissionResult{}, ErrOperationInProgress
	}
	defer s.submitting.Store(false)

	resp, err := s.api.CreateListing(ctx, d.ToRequest(ownerID))
	if err != nil {
		log.Error("Listing create request failed", err, nil)
		return model.TransportFailed(err.Error()), nil
	}
	if resp.Rejected {
		log.Info("Listing rejected by listing service", logger.Fields{"reason": resp.Message})
		return model.ValidationRejected(resp.Message), nil
	}
	log.Info("Listing created", logger.Fields{"listing_id": resp.ListingID})
	return model.Created(resp.ListingID), nil
}

// preflight returns the first local rule the draft breaks, or "".
func (s *SubmissionController) preflight(d model.ListingDraft) string {
	if len(d.Images) < 1 {
		return MsgImageRequired
	}
	if d.RegularPrice < d.DiscountPrice {
		return MsgDiscountAboveRegular
	}
	err := s.validate.Struct(d)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	return fieldMessage(verrs[0])
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "max":
		if fe.Kind() == reflect.Slice {
			return MsgTooManyImages
		}
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be %s %s characters", field, bound, fe.Param())
		}
		return fmt.Sprintf("%s must be %s %s", field, bound, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
