package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// LoadAWSConfig loads the AWS configuration. A non-empty endpoint (LocalStack,
// MinIO) replaces the default resolver.
func LoadAWSConfig(ctx context.Context, region, endpoint string) (aws.Config, error) {
	if endpoint == "" {
		return awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(region))
	}
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, r string, _ ...any) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               endpoint,
			HostnameImmutable: true,
			PartitionID:       "aws",
		}, nil
	})
	return awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(region), awsCfg.WithEndpointResolverWithOptions(resolver))
}

// S3API is the part of the S3 client the repository uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3PhotoRepository struct {
	client        S3API
	presign       *s3.PresignClient
	bucket        string
	publicBaseURL string
	presignTTL    time.Duration
	policy        StoragePolicy
}

// NewS3PhotoRepository builds the repository. With publicBaseURL set, photo
// references are plain URLs under it; otherwise they are presigned GETs.
func NewS3PhotoRepository(cfg aws.Config, pathStyle bool, bucket, publicBaseURL string, presignTTL time.Duration, policy StoragePolicy) *S3PhotoRepository {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
	})
	return &S3PhotoRepository{
		client:        client,
		presign:       s3.NewPresignClient(client),
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		presignTTL:    presignTTL,
		policy:        policy,
	}
}

func (r *S3PhotoRepository) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := r.policy.Check(size, contentType); err != nil {
		return err
	}
	// PutObject needs a known length; the policy keeps the buffer small.
	data, err := io.ReadAll(r.policy.Limit(body))
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (r *S3PhotoRepository) ResolvePublicReference(ctx context.Context, key string) (string, error) {
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return "", fmt.Errorf("s3 head %s: %w", key, err)
	}

	if r.publicBaseURL != "" {
		return r.publicBaseURL + "/" + escapeKey(key), nil
	}
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = r.presignTTL })
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (r *S3PhotoRepository) Delete(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	return err
}

// escapeKey escapes each path segment and keeps the separators.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return strings.Join(parts, "/")
}
