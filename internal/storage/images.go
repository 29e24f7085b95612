// Package storage keeps listing images in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/iliyamo/property-marketplace/internal/config"
)

// AllowedContentTypes maps accepted image types to file extensions.
var AllowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageStore uploads listing images to MinIO.
type ImageStore struct {
	mc         *minio.Client
	bucket     string
	publicBase string
}

func NewImageStore(cfg config.StorageConfig) (*ImageStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage access key and secret key are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	base := strings.TrimSuffix(cfg.PublicBase, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &ImageStore{mc: mc, bucket: cfg.Bucket, publicBase: base}, nil
}

// EnsureBucket creates the bucket when missing.
func (s *ImageStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		slog.Info("storage: created bucket", "bucket", s.bucket)
	}
	return nil
}

// Put uploads an image under properties/<propertyID>/ and returns its
// public URL.
func (s *ImageStore) Put(ctx context.Context, propertyID string, r io.Reader, size int64, contentType string) (string, error) {
	key := ObjectKey(propertyID, contentType)
	if _, err := s.mc.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.publicBase + "/" + key, nil
}

// ObjectKey builds a unique object key for a listing image.
func ObjectKey(propertyID, contentType string) string {
	return path.Join("properties", propertyID, uuid.NewString()+AllowedContentTypes[contentType])
}
