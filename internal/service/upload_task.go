package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"listing-composer/internal/model"
)

// Progress reports how much of one file has been handed to the store.
type Progress struct {
	Transferred int64
	Total       int64
	Fraction    float64
}

// UploadTask is one file's transfer. It settles exactly once; Progress is
// closed when it does.
type UploadTask struct {
	file     File
	key      string
	progress chan Progress
	done     chan struct{}
	outcome  model.UploadOutcome
}

// ObjectKey builds a unique object key for a file name.
func ObjectKey(name string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = strings.Trim(base, ". ")
	if base == "" || base == "/" {
		base = "image"
	}
	return fmt.Sprintf("listings/%d-%s-%s", now.UnixMilli(), uuid.NewString(), base)
}

// StartUpload launches the transfer of file under key. Progress events may be
// coalesced when nobody reads them; the transfer never waits on the reader.
func StartUpload(ctx context.Context, store ObjectStore, file File, key string) *UploadTask {
	t := &UploadTask{
		file:     file,
		key:      key,
		progress: make(chan Progress, 16),
		done:     make(chan struct{}),
	}
	go t.run(ctx, store)
	return t
}

func (t *UploadTask) Key() string { return t.key }

func (t *UploadTask) Progress() <-chan Progress { return t.progress }

// Wait blocks until the task settles.
func (t *UploadTask) Wait() model.UploadOutcome {
	<-t.done
	return t.outcome
}

func (t *UploadTask) run(ctx context.Context, store ObjectStore) {
	defer close(t.done)
	defer close(t.progress)
	t.outcome = t.transfer(ctx, store)
}

func (t *UploadTask) transfer(ctx context.Context, store ObjectStore) model.UploadOutcome {
	body, err := t.file.Open()
	if err != nil {
		return model.UploadFailed(fmt.Errorf("open %s: %w", t.file.Name(), err))
	}
	defer body.Close()

	pr := &progressReader{r: body, total: t.file.Size(), emit: t.emit}
	if err := store.Upload(ctx, t.key, pr, t.file.Size(), t.file.ContentType()); err != nil {
		return model.UploadFailed(fmt.Errorf("upload %s: %w", t.key, err))
	}
	pr.finish()

	url, err := store.ResolvePublicReference(ctx, t.key)
	if err != nil {
		return model.UploadFailed(fmt.Errorf("resolve %s: %w", t.key, err))
	}
	return model.UploadSucceeded(model.ImageRef(url))
}

func (t *UploadTask) emit(p Progress) {
	select {
	case t.progress <- p:
	default:
	}
}

// progressReader counts bytes as the store consumes them. The reported
// fraction never decreases and stays within [0, 1].
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	last  float64
	emit  func(Progress)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report()
	}
	return n, err
}

func (p *progressReader) report() {
	frac := 1.0
	if p.total > 0 {
		frac = float64(p.read) / float64(p.total)
	}
	if frac > 1 {
		frac = 1
	}
	if frac < p.last {
		return
	}
	p.last = frac
	p.emit(Progress{Transferred: p.read, Total: p.total, Fraction: frac})
}

// finish reports completion once the store accepted the object, even if it
// did not read the body to EOF through this reader.
func (p *progressReader) finish() {
	if p.last < 1 {
		p.last = 1
		p.emit(Progress{Transferred: p.total, Total: p.total, Fraction: 1})
	}
}
