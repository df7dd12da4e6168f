package model

// UploadOutcome is the settled result of one upload: either Ref or Err is set.
type UploadOutcome struct {
	Ref ImageRef
	Err error
}

func UploadSucceeded(ref ImageRef) UploadOutcome { return UploadOutcome{Ref: ref} }

func UploadFailed(err error) UploadOutcome { return UploadOutcome{Err: err} }

func (o UploadOutcome) Succeeded() bool { return o.Err == nil }

// SubmissionKind tags a SubmissionResult.
type SubmissionKind int

const (
	SubmissionCreated SubmissionKind = iota + 1
	SubmissionValidationRejected
	SubmissionTransportFailed
)

func (k SubmissionKind) String() string {
	switch k {
	case SubmissionCreated:
		return "created"
	case SubmissionValidationRejected:
		return "validation_rejected"
	case SubmissionTransportFailed:
		return "transport_failed"
	default:
		return "unknown"
	}
}

// SubmissionResult is the terminal state of a submit call. ListingID is set
// for Created, Message for the two failure kinds.
type SubmissionResult struct {
	Kind      SubmissionKind
	ListingID string
	Message   string
}

func Created(listingID string) SubmissionResult {
	return SubmissionResult{Kind: SubmissionCreated, ListingID: listingID}
}

func ValidationRejected(message string) SubmissionResult {
	return SubmissionResult{Kind: SubmissionValidationRejected, Message: message}
}

func TransportFailed(reason string) SubmissionResult {
	return SubmissionResult{Kind: SubmissionTransportFailed, Message: reason}
}
