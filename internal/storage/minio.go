package storage

import (
	"context"
	"fmt"

	"techcart/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioStore keeps images in an S3-compatible bucket
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewMinioStore connects to the bucket, creating it when missing. Without a
// configured public URL objects are addressed as <endpoint>/<bucket>/<key>.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig, publicURL string, logger *zap.Logger) (*MinioStore, error) {
	logger.Info("Initializing MinIO image storage",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket),
		zap.Bool("use_ssl", cfg.UseSSL),
	)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("Created image bucket", zap.String("bucket", cfg.Bucket))
	}

	if publicURL == "" {
		publicURL = client.EndpointURL().String() + "/" + cfg.Bucket
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, publicURL: publicURL, logger: logger}, nil
}

func (s *MinioStore) Put(ctx context.Context, img Image) (string, error) {
	if err := ValidateImage(img); err != nil {
		return "", err
	}

	key := newKey(img.Filename)
	info, err := s.client.PutObject(ctx, s.bucket, key, img.Content, img.Size, minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", key, s.bucket, err)
	}

	s.logger.Debug("Stored image",
		zap.String("bucket", info.Bucket),
		zap.String("key", info.Key),
		zap.Int64("bytes", info.Size),
	)
	return key, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	// RemoveObject succeeds for absent objects
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) URL(key string) string {
	return joinURL(s.publicURL, key)
}
