// Package mediastore wraps MinIO/S3 interactions for the original uploaded
// media files. Worker-produced artifacts (thumbnails, HLS trees) live on the
// media filesystem instead; only the originals go through object storage.
package mediastore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/StreamVault/internal/config"
)

// Storage holds the MinIO client and bucket configuration.
type Storage struct {
	client    *minio.Client
	rawBucket string
	region    string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:    client,
		rawBucket: cfg.RawBucket,
		region:    cfg.S3Region,
	}, nil
}

// EnsureBucket makes sure the raw bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.rawBucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.rawBucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.rawBucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.rawBucket, err)
		}
	}
	return nil
}

// UploadOriginal stores the validated upload under its object key.
func (s *Storage) UploadOriginal(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.rawBucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("upload original: %w", err)
	}
	return nil
}

// Download stages the original onto the local filesystem so ffmpeg/ffprobe
// can read it.
func (s *Storage) Download(ctx context.Context, objectKey, destPath string) error {
	if err := s.client.FGetObject(ctx, s.rawBucket, objectKey, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download original %s: %w", objectKey, err)
	}
	return nil
}

// Remove deletes the original from the raw bucket.
func (s *Storage) Remove(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.rawBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove original %s: %w", objectKey, err)
	}
	return nil
}
