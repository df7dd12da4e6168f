package repository

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

// DefaultMaxImageBytes is the per-image limit: 2 MiB.
const DefaultMaxImageBytes = 2 << 20

var (
	ErrObjectTooLarge      = errors.New("object exceeds the size limit")
	ErrUnsupportedMimeType = errors.New("only image uploads are allowed")
	ErrObjectNotFound      = errors.New("object not found")
)

// StoragePolicy is enforced by every object store before and during a write.
type StoragePolicy struct {
	MaxBytes int64
}

func NewStoragePolicy(maxBytes int64) StoragePolicy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return StoragePolicy{MaxBytes: maxBytes}
}

// Check rejects objects by their declared size and content type.
func (p StoragePolicy) Check(size int64, contentType string) error {
	if size > p.MaxBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrObjectTooLarge, size, p.MaxBytes)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: %q", ErrUnsupportedMimeType, contentType)
	}
	return nil
}

// Limit wraps r so that reading past MaxBytes fails, whatever size was declared.
func (p StoragePolicy) Limit(r io.Reader) io.Reader {
	return &limitedReader{r: r, left: p.MaxBytes}
}

type limitedReader struct {
	r    io.Reader
	left int64
}

func (l *limitedReader) Read(b []byte) (int, error) {
	if l.left < 0 {
		return 0, ErrObjectTooLarge
	}
	// Allow one byte past the limit so an oversized body is detected.
	if int64(len(b)) > l.left+1 {
		b = b[:l.left+1]
	}
	n, err := l.r.Read(b)
	l.left -= int64(n)
	if l.left < 0 {
		return n, ErrObjectTooLarge
	}
	return n, err
}
