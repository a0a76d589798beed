package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/hairnova/internal/config"
)

var ErrStorageDisabled = errors.New("image storage is not configured")

// ImageStore persists product images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ImageStore stores images in an S3 compatible bucket.
type S3ImageStore struct {
	client    objectAPI
	bucket    string
	publicURL string
	log       *zap.Logger
}

// NewS3Client builds a client for cfg. A custom endpoint (MinIO, LocalStack)
// switches to path-style addressing.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.StorageRegion)}
	if cfg.StorageAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.StorageAccessKey, cfg.StorageSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.StorageEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3ImageStore creates the store. publicURL is the prefix objects are served
// from; it defaults to the virtual-hosted bucket URL.
func NewS3ImageStore(client objectAPI, cfg *config.Config, log *zap.Logger) *S3ImageStore {
	public := strings.TrimRight(cfg.StoragePublicURL, "/")
	if public == "" {
		public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.StorageBucket, cfg.StorageRegion)
	}
	return &S3ImageStore{client: client, bucket: cfg.StorageBucket, publicURL: public, log: log.Named("images")}
}

func (s *S3ImageStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return s.publicURL + "/" + key, nil
}

// Delete removes an object previously returned by Upload. URLs that do not point
// at this bucket are left alone.
func (s *S3ImageStore) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.publicURL+"/")
	if !ok || key == "" {
		return nil
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

type disabledImageStore struct{}

func (disabledImageStore) Upload(context.Context, string, io.Reader, string) (string, error) {
	return "", ErrStorageDisabled
}

func (disabledImageStore) Delete(context.Context, string) error { return nil }

// NewImageStore returns the S3 store when storage is configured and a refusing
// store otherwise.
func NewImageStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (ImageStore, error) {
	if !cfg.StorageEnabled() {
		return disabledImageStore{}, nil
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewS3ImageStore(client, cfg, log), nil
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ImageContentType returns the MIME type for an allowed image filename.
func ImageContentType(filename string) (string, bool) {
	ct, ok := imageTypes[strings.ToLower(path.Ext(filename))]
	return ct, ok
}

// ProductImageKey builds a unique object key for a product image.
func ProductImageKey(productID uuid.UUID, filename string) string {
	return fmt.Sprintf("products/%s/%s%s", productID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
}
