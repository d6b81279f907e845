package file

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the connection settings of the object storage.
type Config struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint"`
	AccessKey  string        `mapstructure:"access_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	BucketName string        `mapstructure:"bucket_name"`
	UseSSL     bool          `mapstructure:"use_ssl"`
	LinkTTL    time.Duration `mapstructure:"link_ttl"` // lifetime of presigned download links
}

// Storage provides an S3-compatible storage backend using MinIO.
// It keeps exported archives and images in one bucket under subdirectories.
type Storage struct {
	client     *minio.Client
	bucketName string
	linkTTL    time.Duration
}

// NewStorage creates a new Storage instance connected to the configured MinIO server.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		linkTTL:    ttl,
	}, nil
}

// Save uploads size bytes from src to subdir/filename with the given content type.
// A negative size streams until EOF. Returns the object path within the bucket.
func (s *Storage) Save(ctx context.Context, subdir, filename string, src io.Reader, size int64, contentType string) (string, error) {
	objectName := path.Join(subdir, filename)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, objectName, src, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return objectName, nil
}

// Link returns a presigned download URL for the object at path.
func (s *Storage) Link(ctx context.Context, path string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, path, s.linkTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign file: %w", err)
	}

	return u.String(), nil
}
