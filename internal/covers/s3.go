package covers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"webtoonhub/internal/ingest"
	"webtoonhub/pkg/utils"
)

const keyPrefix = "covers/"

// S3Store uploads covers to a bucket and persists their public URL.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
	log     *zap.Logger
}

// NewS3Store builds a path-style client so MinIO and other S3-compatible
// endpoints work without DNS buckets.
func NewS3Store(cfg utils.S3Config, log *zap.Logger) *S3Store {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: true,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
				Source:          "webtoonhub",
			}, nil
		}),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &S3Store{
		client:  s3.New(opts),
		bucket:  cfg.Bucket,
		baseURL: publicBase(cfg),
		log:     log,
	}
}

func publicBase(cfg utils.S3Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}

	s.log.Info("creating cover bucket", zap.String("bucket", s.bucket))
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, key, dataURL string) (string, error) {
	typ, data, err := ingest.DecodeDataURL(dataURL)
	if err != nil {
		return "", ErrInvalidImage
	}

	objectKey := keyPrefix + key + extension(typ)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(typ),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		s.log.Error("cover upload failed", zap.String("key", objectKey), zap.Error(err))
		return "", fmt.Errorf("put cover: %w", err)
	}

	s.log.Info("cover uploaded", zap.String("key", objectKey), zap.Int("size", len(data)))
	return s.baseURL + "/" + objectKey, nil
}

// Delete removes a cover this store uploaded. Other references are ignored.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	objectKey, ok := strings.CutPrefix(ref, s.baseURL+"/")
	if !ok || !strings.HasPrefix(objectKey, keyPrefix) {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("delete cover: %w", err)
	}
	return nil
}

func extension(mediaType string) string {
	if m := mimetype.Lookup(mediaType); m != nil {
		return m.Extension()
	}
	return ""
}
