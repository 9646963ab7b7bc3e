package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds S3-compatible storage configuration
type S3Config struct {
	Endpoint        string // e.g. https://xxx.r2.cloudflarestorage.com
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	BasePath        string // prefix for all objects, e.g. "folio/"
	ForcePathStyle  bool   // true for MinIO/R2
}

// S3Store keeps assets in an S3/R2/MinIO compatible bucket
type S3Store struct {
	client   *s3.Client
	bucket   string
	basePath string
}

// NewS3Store creates a new S3-compatible asset store
func NewS3Store(cfg S3Config, logger *slog.Logger) *S3Store {
	opts := func(o *s3.Options) {
		o.Region = cfg.Region
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}

	logger.Info("s3 asset store initialized",
		"bucket", cfg.Bucket,
		"endpoint", cfg.Endpoint,
	)

	return &S3Store{
		client:   s3.New(s3.Options{}, opts),
		bucket:   cfg.Bucket,
		basePath: cfg.BasePath,
	}
}

func (s *S3Store) key(p string) string {
	return s.basePath + Normalize(p)
}

func (s *S3Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head failed: %w", err)
	}
	return true, nil
}

func (s *S3Store) Copy(ctx context.Context, src, dst string) error {
	source := url.PathEscape(s.bucket) + "/" + escapeKey(s.key(src))
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.key(dst)),
		CopySource: aws.String(source),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("%s: %w", src, ErrNotFound)
		}
		return fmt.Errorf("s3 copy failed: %w", err)
	}
	return nil
}

// Delete removes an object. S3 does not report missing keys on delete.
func (s *S3Store) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

func (s *S3Store) Thumbnails(ctx context.Context, p string) ([]string, error) {
	p = Normalize(p)
	base := path.Base(p)
	stem := strings.TrimSuffix(base, path.Ext(base))
	prefix := s.key(path.Join(path.Dir(p), stem+thumbnailMarker))

	var thumbs []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.basePath)
			if isThumbnailOf(path.Base(key), base) && path.Dir(key) == path.Dir(p) {
				thumbs = append(thumbs, key)
			}
		}
	}
	return thumbs, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
