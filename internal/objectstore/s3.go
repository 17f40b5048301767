package objectstore

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"clipstream/internal/config"
)

// s3Store implements Store against any S3-compatible endpoint.
type s3Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func newS3Store(cfg *config.Config) (*s3Store, error) {
	client, err := minio.New(cfg.ObjectStore.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey, ""),
		Secure: cfg.ObjectStore.UseSSL,
		Region: cfg.ObjectStore.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	publicURL := strings.TrimRight(cfg.ObjectStore.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.ObjectStore.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.ObjectStore.Endpoint, cfg.ObjectStore.Bucket)
	}

	return &s3Store{
		client:    client,
		bucket:    cfg.ObjectStore.Bucket,
		publicURL: publicURL,
	}, nil
}

func (s *s3Store) Download(ctx context.Context, key, destPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) UploadFile(ctx context.Context, key, srcPath string) (int64, error) {
	info, err := s.client.FPutObject(ctx, s.bucket, key, srcPath, minio.PutObjectOptions{
		ContentType: ContentTypeFor(srcPath),
	})
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	return info.Size, nil
}

func (s *s3Store) UploadDir(ctx context.Context, prefix, dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := joinKey(prefix, filepath.ToSlash(rel))
		size, err := s.UploadFile(ctx, key, path)
		if err != nil {
			return err
		}
		total += size
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("upload dir %s: %w", dir, err)
	}
	return total, nil
}

func (s *s3Store) URL(key string) string {
	return s.publicURL + "/" + strings.TrimLeft(key, "/")
}
