package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const downloadTokenKey = "firebaseStorageDownloadTokens"

// FirebasePhotoRepository stores photos in a Firebase Storage bucket and hands
// out tokenised download URLs.
type FirebasePhotoRepository struct {
	bucket     *storage.BucketHandle
	bucketName string
	policy     StoragePolicy
}

// NewFirebaseApp initialises the Firebase app. An empty credentialsFile falls
// back to application default credentials.
func NewFirebaseApp(ctx context.Context, projectID, bucket, credentialsFile string) (*firebase.App, error) {
	cfg := &firebase.Config{ProjectID: projectID, StorageBucket: bucket}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	return app, nil
}

func NewFirebasePhotoRepository(ctx context.Context, app *firebase.App, bucketName string, policy StoragePolicy) (*FirebasePhotoRepository, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("firebase bucket %s: %w", bucketName, err)
	}
	return &FirebasePhotoRepository{bucket: bucket, bucketName: bucketName, policy: policy}, nil
}

func (r *FirebasePhotoRepository) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := r.policy.Check(size, contentType); err != nil {
		return err
	}

	// Cancelling the writer's context discards a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	oh := r.bucket.Object(key).If(storage.Conditions{DoesNotExist: true})
	w := oh.NewWriter(wctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{downloadTokenKey: uuid.NewString()}

	if err := writeObject(w, r.policy.Limit(body), cancel); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return fmt.Errorf("object %s already exists: %w", key, err)
		}
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// writeObject copies src into w and commits it. A failed copy aborts the
// write before w is closed, so nothing is stored.
func writeObject(w io.WriteCloser, src io.Reader, abort context.CancelFunc) error {
	if _, err := io.Copy(w, src); err != nil {
		abort()
		_ = w.Close()
		return err
	}
	return w.Close()
}

// ResolvePublicReference reads the object's download token and builds the
// same URL the Firebase console shows.
func (r *FirebasePhotoRepository) ResolvePublicReference(ctx context.Context, key string) (string, error) {
	attrs, err := r.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	if err != nil {
		return "", err
	}
	token := attrs.Metadata[downloadTokenKey]
	if token == "" {
		return "", fmt.Errorf("object %s has no download token", key)
	}
	return FirebaseDownloadURL(r.bucketName, key, token), nil
}

func (r *FirebasePhotoRepository) Delete(ctx context.Context, key string) error {
	err := r.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// FirebaseDownloadURL formats a Firebase Storage download URL. The object path
// is escaped as a single segment, slashes included.
func FirebaseDownloadURL(bucket, key, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(key), url.QueryEscape(token))
}
