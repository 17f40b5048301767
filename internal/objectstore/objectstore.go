// Package objectstore abstracts the S3-compatible store holding uploaded
// sources and encoded artifacts. The s3 backend talks to any S3 endpoint;
// the filesystem backend keeps artifacts on local disk for development and
// tests.
package objectstore

import (
	"context"
	"fmt"
	"path"
	"strings"

	"clipstream/internal/config"
)

// Store moves files between local scratch space and the artifact store.
type Store interface {
	// Download copies an object to a local path.
	Download(ctx context.Context, key, destPath string) error
	// UploadFile stores a single local file under the given key and
	// returns the number of bytes written.
	UploadFile(ctx context.Context, key, srcPath string) (int64, error)
	// UploadDir stores every file under dir beneath the key prefix,
	// preserving relative paths. It returns the total bytes written.
	UploadDir(ctx context.Context, prefix, dir string) (int64, error)
	// URL returns the public address of an object for playback.
	URL(key string) string
}

// New constructs the store selected by configuration.
func New(cfg *config.Config) (Store, error) {
	switch cfg.ObjectStore.Backend {
	case "s3":
		return newS3Store(cfg)
	case "filesystem":
		return NewFilesystem(cfg.ObjectStore.LocalDir, cfg.ObjectStore.PublicURL)
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.ObjectStore.Backend)
	}
}

// ContentTypeFor maps artifact filenames to their MIME type.
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func joinKey(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, "/")
}
