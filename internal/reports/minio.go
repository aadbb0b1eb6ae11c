package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioSink uploads reports to reports/<session>/<id>.json in an S3-compatible bucket.
type MinioSink struct {
	client *minio.Client
	bucket string
}

// NewMinioClient builds a client from the [minio] config section.
func NewMinioClient(cfg shared.MinioConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: minio endpoint and bucket are required", shared.ErrMissingConfig)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: minio: %v", shared.ErrInvalidConfig, err)
	}
	return client, nil
}

func NewMinioSink(client *minio.Client, bucket string) *MinioSink {
	return &MinioSink{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioSink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket %s: %v", shared.ErrServiceUnavailable, s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// ObjectKey returns the object name used for report.
func ObjectKey(report *models.TransferReport) string {
	return path.Join("reports", report.SessionID, report.ID+".json")
}

func (s *MinioSink) Save(ctx context.Context, report *models.TransferReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, ObjectKey(report), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("%w: upload report %s: %v", shared.ErrAPIRequest, report.ID, err)
	}
	return nil
}
