// Package blob stores order attachments in an S3 bucket and feeds the
// "blob" field of the storage health endpoint.
package blob

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rollworks/oms/internal/config"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type FileInfo struct {
	Key        string    `json:"pathname"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Store struct {
	client s3API
	bucket string
	logger *zap.Logger
}

func New(ctx context.Context, cfg config.Blob, logger *zap.Logger) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return &Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func NewWithClient(client s3API, bucket string, logger *zap.Logger) *Store {
	return &Store{client: client, bucket: bucket, logger: logger}
}

// Upload stores the content under the given name with a random suffix so
// repeated uploads of the same filename never collide.
func (s *Store) Upload(ctx context.Context, name string, body io.Reader) (*FileInfo, error) {
	key := name + "-" + uuid.NewString()[:8]
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		s.logger.Error("attachment upload failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Info("attachment uploaded", zap.String("key", key))
	return &FileInfo{Key: key, UploadedAt: time.Now()}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("attachment delete failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return err
}

func (s *Store) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, err
	}
	files := make([]FileInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		f := FileInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
		if obj.LastModified != nil {
			f.UploadedAt = *obj.LastModified
		}
		files = append(files, f)
	}
	return files, nil
}

// Healthy probes the bucket with a single-key listing.
func (s *Store) Healthy(ctx context.Context) bool {
	_, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(1),
	})
	return err == nil
}
