package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PhotoRepository keeps listing photos in GridFS and serves them back through
// GET /api/photos/:id.
type PhotoRepository struct {
	DB            *mongo.Database
	publicBaseURL string
	policy        StoragePolicy
}

func NewPhotoRepository(client *mongo.Client, dbName, publicBaseURL string, policy StoragePolicy) *PhotoRepository {
	return &PhotoRepository{
		DB:            client.Database(dbName),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		policy:        policy,
	}
}

func (r *PhotoRepository) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(r.DB)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := bucket.SetWriteDeadline(dl); err != nil {
			return nil, err
		}
		if err := bucket.SetReadDeadline(dl); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

// Загрузить фото под именем key
func (r *PhotoRepository) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := r.policy.Check(size, contentType); err != nil {
		return err
	}
	bucket, err := r.bucket(ctx)
	if err != nil {
		return err
	}

	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	stream, err := bucket.OpenUploadStream(key, opts)
	if err != nil {
		return err
	}
	if _, err := io.Copy(stream, r.policy.Limit(body)); err != nil {
		_ = stream.Abort()
		return fmt.Errorf("write %s: %w", key, err)
	}
	return stream.Close()
}

func (r *PhotoRepository) fileID(ctx context.Context, key string) (primitive.ObjectID, error) {
	var doc struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	err := r.DB.Collection("fs.files").FindOne(ctx, bson.M{"filename": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	if err != nil {
		return primitive.NilObjectID, err
	}
	return doc.ID, nil
}

// ResolvePublicReference returns the URL the photo is served from.
func (r *PhotoRepository) ResolvePublicReference(ctx context.Context, key string) (string, error) {
	id, err := r.fileID(ctx, key)
	if err != nil {
		return "", err
	}
	return r.publicBaseURL + "/api/photos/" + id.Hex(), nil
}

// Удалить фото по ключу
func (r *PhotoRepository) Delete(ctx context.Context, key string) error {
	id, err := r.fileID(ctx, key)
	if err != nil {
		return err
	}
	bucket, err := r.bucket(ctx)
	if err != nil {
		return err
	}
	return bucket.Delete(id)
}

// Скачать фото по ID
func (r *PhotoRepository) DownloadPhoto(ctx context.Context, photoID string) ([]byte, string, error) {
	objID, err := primitive.ObjectIDFromHex(photoID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, photoID)
	}
	bucket, err := r.bucket(ctx)
	if err != nil {
		return nil, "", err
	}

	stream, err := bucket.OpenDownloadStream(objID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, photoID)
	}
	if err != nil {
		return nil, "", err
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, "", err
	}

	contentType := "application/octet-stream"
	if meta := stream.GetFile().Metadata; meta != nil {
		if ct, ok := meta.Lookup("contentType").StringValueOK(); ok {
			contentType = ct
		}
	}
	return data, contentType, nil
}
