package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

// MinioStore writes uploads to an S3 compatible bucket with public read access.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewMinioStore connects to MinIO and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}

	if err := ensureBucket(ctx, client, cfg.MinioBucket); err != nil {
		return nil, fmt.Errorf("prepare bucket %s: %w", cfg.MinioBucket, err)
	}

	logger.Info("object storage ready",
		zap.String("driver", string(config.StorageDriverMinio)),
		zap.String("endpoint", cfg.MinioEndpoint),
		zap.String("bucket", cfg.MinioBucket))

	return &MinioStore{
		client:    client,
		bucket:    cfg.MinioBucket,
		publicURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:    logger,
	}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return err
	}
	return client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket))
}

func publicReadPolicy(bucket string) string {
	return `{
		"Version": "2012-10-17",
		"Statement": [
			{
				"Action": ["s3:GetObject"],
				"Effect": "Allow",
				"Principal": "*",
				"Resource": "arn:aws:s3:::` + bucket + `/*"
			}
		]
	}`
}

// Put uploads obj and returns its public URL.
func (s *MinioStore) Put(ctx context.Context, kind Kind, obj Object) (Stored, error) {
	key := objectKey(kind, obj.Name)
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	size := obj.Size
	if size <= 0 {
		size = -1
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, obj.Body, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return Stored{}, err
	}

	return Stored{
		Key:  key,
		Name: obj.Name,
		URL:  fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key),
	}, nil
}

// Delete removes the object stored under key.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
