package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"listing-composer/internal/logger"
	"listing-composer/internal/model"
)

// SessionView is a draft session plus its live state.
type SessionView struct {
	model.DraftSession
	Uploading      bool      `json:"uploading"`
	Submitting     bool      `json:"submitting"`
	UploadProgress []float64 `json:"uploadProgress,omitempty"`
}

// liveSession holds the per-session state that is not persisted. It exists
// only while at least one call for the session is running; refs is guarded
// by Composer.mu.
type liveSession struct {
	refs        int
	mu          sync.Mutex
	coordinator *UploadCoordinator
	submitter   *SubmissionController
	uploading   bool
	submitting  bool
	progress    []float64
}

// Composer owns draft sessions and runs uploads and submissions against them.
type Composer struct {
	drafts     DraftRepository
	store      ObjectStore
	api        ListingCreator
	uploadOpts []CoordinatorOption
	now        func() time.Time
	mu         sync.Mutex
	live       map[string]*liveSession
}

func NewComposer(drafts DraftRepository, store ObjectStore, api ListingCreator, uploadOpts ...CoordinatorOption) *Composer {
	return &Composer{
		drafts:     drafts,
		store:      store,
		api:        api,
		uploadOpts: uploadOpts,
		now:        time.Now,
		live:       make(map[string]*liveSession),
	}
}

// session returns the live state of id and holds a reference to it until
// release is called.
func (c *Composer) session(id string) *liveSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	ls, ok := c.live[id]
	if !ok {
		ls = &liveSession{
			coordinator: NewUploadCoordinator(c.store, c.uploadOpts...),
			submitter:   NewSubmissionController(c.api),
		}
		c.live[id] = ls
	}
	ls.refs++
	return ls
}

// release drops the reference taken by session and evicts the live state
// once no call holds it.
func (c *Composer) release(id string, ls *liveSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ls.refs--
	if ls.refs == 0 && c.live[id] == ls {
		delete(c.live, id)
	}
}

func (c *Composer) load(ctx context.Context, id, ownerID string) (*model.DraftSession, error) {
	s, err := c.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return s, nil
}

// acquire locks ls and loads the session. On error the lock is released.
func (c *Composer) acquire(ctx context.Context, ls *liveSession, id, ownerID string) (*model.DraftSession, error) {
	ls.mu.Lock()
	s, err := c.load(ctx, id, ownerID)
	if err != nil {
		ls.mu.Unlock()
		return nil, err
	}
	return s, nil
}

func (c *Composer) save(ctx context.Context, s *model.DraftSession) error {
	s.UpdatedAt = c.now().UTC()
	if err := c.drafts.Save(ctx, s); err != nil {
		return fmt.Errorf("save draft %s: %w", s.ID, err)
	}
	return nil
}

// checkIdle refuses a new upload or submission. It must be called with
// ls.mu held.
func (ls *liveSession) checkIdle(s *model.DraftSession) error {
	if s.ListingID != "" {
		return ErrDraftSubmitted
	}
	if ls.uploading || ls.submitting {
		return ErrOperationInProgress
	}
	return nil
}

// view must be called with ls.mu held.
func (ls *liveSession) view(s *model.DraftSession) SessionView {
	v := SessionView{DraftSession: *s, Uploading: ls.uploading, Submitting: ls.submitting}
	v.Draft = s.Draft.Clone()
	if ls.uploading {
		v.UploadProgress = append([]float64(nil), ls.progress...)
	}
	return v
}

// NewDraft starts a session with the default draft.
func (c *Composer) NewDraft(ctx context.Context, ownerID string) (SessionView, error) {
	now := c.now().UTC()
	s := &model.DraftSession{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Draft:     model.NewListingDraft(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.drafts.Save(ctx, s); err != nil {
		return SessionView{}, fmt.Errorf("save draft %s: %w", s.ID, err)
	}
	logger.FromContext(ctx).Info("Draft created", logger.Fields{"draft_id": s.ID, "user_ref": ownerID})
	return SessionView{DraftSession: *s}, nil
}

func (c *Composer) Get(ctx context.Context, id, ownerID string) (SessionView, error) {
	ls := c.session(id)
	defer c.release(id, ls)
	s, err := c.acquire(ctx, ls, id, ownerID)
	if err != nil {
		return SessionView{}, err
	}
	defer ls.mu.Unlock()
	return ls.view(s), nil
}

// Discard deletes a session. It is refused while an upload or submission runs.
func (c *Composer) Discard(ctx context.Context, id, ownerID string) error {
	ls := c.session(id)
	defer c.release(id, ls)
	_, err := c.acquire(ctx, ls, id, ownerID)
	if err != nil {
		return err
	}
	defer ls.mu.Unlock()

	if ls.uploading || ls.submitting {
		return ErrOperationInProgress
	}
	if err := c.drafts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	logger.FromContext(ctx).Info("Draft discarded", logger.Fields{"draft_id": id})
	return nil
}

// UploadImages uploads files and appends their references to the draft. On
// failure the image list is unchanged and ImageUploadError says why.
func (c *Composer) UploadImages(ctx context.Context, id, ownerID string, files []File) (SessionView, error) {
	log := logger.FromContext(ctx).WithFields(logger.Fields{"draft_id": id})
	ls := c.session(id)
	defer c.release(id, ls)
	s, err := c.acquire(ctx, ls, id, ownerID)
	if err != nil {
		return SessionView{}, err
	}
	if err := ls.checkIdle(s); err != nil {
		v := ls.view(s)
		ls.mu.Unlock()
		return v, err
	}
	s.ImageUploadError = ""
	current := len(s.Draft.Images)
	if err := CheckBatchSize(len(files), current); err != nil {
		s.ImageUploadError = MsgTooManyImages
		if serr := c.save(ctx, s); serr != nil {
			log.Error("Could not store upload error", serr, nil)
		}
		v := ls.view(s)
		ls.mu.Unlock()
		return v, err
	}
	if err := c.save(ctx, s); err != nil {
		ls.mu.Unlock()
		return SessionView{}, err
	}
	ls.uploading = true
	ls.progress = make([]float64, len(files))
	ls.mu.Unlock()

	// Uploads and the merge that follows outlive the request that started them.
	ctx = context.WithoutCancel(ctx)
	outcome := ls.coordinator.SubmitBatch(ctx, files, current, func(i int, p Progress) {
		ls.mu.Lock()
		if i < len(ls.progress) {
			ls.progress[i] = p.Fraction
		}
		ls.mu.Unlock()
	})

	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.uploading = false
	ls.progress = nil

	// Field edits may have landed while the files were in flight.
	s, err = c.load(ctx, id, ownerID)
	if err != nil {
		return SessionView{}, err
	}

	resultErr := outcome.Err
	if resultErr == nil {
		merged, err := MergeImages(s.Draft, outcome.Refs)
		if err != nil {
			resultErr = err
		} else {
			s.Draft = merged
		}
	}
	switch {
	case resultErr == nil:
		log.Info("Images attached", logger.Fields{"count": len(outcome.Refs), "total": len(s.Draft.Images)})
	case errors.Is(resultErr, ErrTooManyImages):
		s.ImageUploadError = MsgTooManyImages
	default:
		s.ImageUploadError = MsgUploadFailed
	}
	if err := c.save(ctx, s); err != nil {
		return ls.view(s), err
	}
	return ls.view(s), resultErr
}

// mutate applies fn to the draft under the session lock.
func (c *Composer) mutate(ctx context.Context, id, ownerID string, fn func(model.ListingDraft) (model.ListingDraft, error)) (SessionView, error) {
	ls := c.session(id)
	defer c.release(id, ls)
	s, err := c.acquire(ctx, ls, id, ownerID)
	if err != nil {
		return SessionView{}, err
	}
	defer ls.mu.Unlock()

	if s.ListingID != "" {
		return ls.view(s), ErrDraftSubmitted
	}
	if ls.submitting {
		return ls.view(s), ErrOperationInProgress
	}
	next, err := fn(s.Draft)
	if err != nil {
		return ls.view(s), err
	}
	s.Draft = next
	if err := c.save(ctx, s); err != nil {
		return SessionView{}, err
	}
	return ls.view(s), nil
}

func (c *Composer) RemoveImage(ctx context.Context, id, ownerID string, index int) (SessionView, error) {
	return c.mutate(ctx, id, ownerID, func(d model.ListingDraft) (model.ListingDraft, error) {
		return RemoveImageAt(d, index)
	})
}

func (c *Composer) UpdateField(ctx context.Context, id, ownerID string, u FieldUpdate) (SessionView, error) {
	return c.mutate(ctx, id, ownerID, func(d model.ListingDraft) (model.ListingDraft, error) {
		return SetField(d, u)
	})
}

func (c *Composer) SetPropertyType(ctx context.Context, id, ownerID string, which model.PropertyType) (SessionView, error) {
	return c.mutate(ctx, id, ownerID, func(d model.ListingDraft) (model.ListingDraft, error) {
		return SetPropertyType(d, which)
	})
}

func (c *Composer) ToggleFlag(ctx context.Context, id, ownerID string, flag model.Flag) (SessionView, error) {
	return c.mutate(ctx, id, ownerID, func(d model.ListingDraft) (model.ListingDraft, error) {
		return ToggleFlag(d, flag)
	})
}

// Submit sends the draft to the listing service. A created listing ends the
// session; any other result is kept in SubmissionError and returned as an
// error wrapping ErrValidationRejected or ErrTransportFailed. If the session
// cannot be removed after a create, it is marked with the listing id and a
// later Submit returns the same result without sending again.
func (c *Composer) Submit(ctx context.Context, id, ownerID string) (model.SubmissionResult, SessionView, error) {
	log := logger.FromContext(ctx).WithFields(logger.Fields{"draft_id": id})
	ls := c.session(id)
	defer c.release(id, ls)
	s, err := c.acquire(ctx, ls, id, ownerID)
	if err != nil {
		return model.SubmissionResult{}, SessionView{}, err
	}
	if s.ListingID != "" {
		defer ls.mu.Unlock()
		result := model.Created(s.ListingID)
		if err := c.drafts.Delete(ctx, id); err != nil {
			log.Error("Could not delete submitted draft", err, logger.Fields{"listing_id": s.ListingID})
			return result, ls.view(s), nil
		}
		return result, SessionView{}, nil
	}
	if ls.uploading || ls.submitting {
		v := ls.view(s)
		ls.mu.Unlock()
		return model.SubmissionResult{}, v, ErrOperationInProgress
	}
	s.SubmissionError = ""
	if err := c.save(ctx, s); err != nil {
		ls.mu.Unlock()
		return model.SubmissionResult{}, SessionView{}, err
	}
	snapshot := s.Draft.Clone()
	ls.submitting = true
	ls.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	result, err := ls.submitter.Submit(ctx, snapshot, ownerID)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.submitting = false
	if err != nil {
		return result, ls.view(s), err
	}

	if result.Kind == model.SubmissionCreated {
		derr := c.drafts.Delete(ctx, id)
		if derr == nil {
			return result, SessionView{}, nil
		}
		log.Error("Could not delete submitted draft", derr, logger.Fields{"listing_id": result.ListingID})
		s.ListingID = result.ListingID
		if err := c.save(ctx, s); err != nil {
			log.Error("Could not mark draft as submitted", err, nil)
		}
		return result, ls.view(s), nil
	}

	if s, err = c.load(ctx, id, ownerID); err != nil {
		return result, SessionView{}, err
	}
	s.SubmissionError = result.Message
	if err := c.save(ctx, s); err != nil {
		return result, ls.view(s), err
	}

	sentinel := ErrTransportFailed
	if result.Kind == model.SubmissionValidationRejected {
		sentinel = ErrValidationRejected
	}
	return result, ls.view(s), fmt.Errorf("%w: %s", sentinel, result.Message)
}
