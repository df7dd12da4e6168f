package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"listing-composer/internal/logger"
	"listing-composer/internal/model"
)

// BatchOutcome is either all references, in file order, or one error.
type BatchOutcome struct {
	Refs []model.ImageRef
	Err  error
}

func (o BatchOutcome) Succeeded() bool { return o.Err == nil }

// ProgressFunc receives progress of the file at index. It is called from
// several goroutines at once.
type ProgressFunc func(index int, p Progress)

// UploadCoordinator uploads a batch of files concurrently and joins the
// results into a single outcome.
type UploadCoordinator struct {
	store     ObjectStore
	cleanup   bool
	now       func() time.Time
	uploading atomic.Bool
}

type CoordinatorOption func(*UploadCoordinator)

// WithOrphanCleanup deletes the objects of a failed batch when the store
// supports it.
func WithOrphanCleanup(enabled bool) CoordinatorOption {
	return func(c *UploadCoordinator) { c.cleanup = enabled }
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *UploadCoordinator) { c.now = now }
}

func NewUploadCoordinator(store ObjectStore, opts ...CoordinatorOption) *UploadCoordinator {
	c := &UploadCoordinator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Uploading reports whether a batch is running.
func (c *UploadCoordinator) Uploading() bool { return c.uploading.Load() }

// CheckBatchSize rejects empty batches and batches that would push the
// listing past model.MaxImages.
func CheckBatchSize(files, current int) error {
	if files == 0 || files+current > model.MaxImages {
		return fmt.Errorf("%w: %d selected, %d already attached", ErrTooManyImages, files, current)
	}
	return nil
}

// SubmitBatch starts one upload per file and waits for every one of them.
// A single failure fails the whole batch; references of its successful
// siblings are discarded.
func (c *UploadCoordinator) SubmitBatch(ctx context.Context, files []File, currentImageCount int, onProgress ProgressFunc) BatchOutcome {
	log := logger.FromContext(ctx).WithFields(logger.Fields{"component": "UploadCoordinator"})

	if err := CheckBatchSize(len(files), currentImageCount); err != nil {
		log.Warn("Upload batch rejected", logger.Fields{"files": len(files), "current_images": currentImageCount})
		return BatchOutcome{Err: err}
	}
	if !c.uploading.CompareAndSwap(false, true) {
		return BatchOutcome{Err: ErrUploadInProgress}
	}
	defer c.uploading.Store(false)

	now := c.now()
	tasks := make([]*UploadTask, len(files))
	for i, f := range files {
		tasks[i] = StartUpload(ctx, c.store, f, ObjectKey(f.Name(), now))
	}
	log.Info("Upload batch started", logger.Fields{"files": len(files)})

	outcomes := make([]model.UploadOutcome, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			for p := range t.Progress() {
				if onProgress != nil {
					onProgress(i, p)
				}
			}
			outcomes[i] = t.Wait()
			return outcomes[i].Err
		})
	}
	firstErr := g.Wait()

	if firstErr == nil {
		refs := make([]model.ImageRef, len(outcomes))
		for i, o := range outcomes {
			refs[i] = o.Ref
		}
		log.Info("Upload batch finished", logger.Fields{"files": len(files)})
		return BatchOutcome{Refs: refs}
	}

	failed := 0
	for i, o := range outcomes {
		if !o.Succeeded() {
			failed++
			log.Error("Image upload failed", o.Err, logger.Fields{"file": files[i].Name(), "index": i})
		}
	}
	if c.cleanup {
		c.deleteOrphans(ctx, log, tasks, outcomes)
	}
	return BatchOutcome{Err: fmt.Errorf("%w: %d of %d files failed: %v", ErrUploadTransferFailed, failed, len(files), firstErr)}
}

func (c *UploadCoordinator) deleteOrphans(ctx context.Context, log logger.Logger, tasks []*UploadTask, outcomes []model.UploadOutcome) {
	deleter, ok := c.store.(ObjectDeleter)
	if !ok {
		return
	}
	for i, o := range outcomes {
		if !o.Succeeded() {
			continue
		}
		if err := deleter.Delete(ctx, tasks[i].Key()); err != nil {
			log.Warn("Could not delete orphaned upload", logger.Fields{"key": tasks[i].Key(), "error": err.Error()})
		}
	}
}
