package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem implements Store on a local directory tree. Keys map directly
// to relative paths beneath the root.
type Filesystem struct {
	root      string
	publicURL string
}

// NewFilesystem creates a filesystem-backed store rooted at dir.
func NewFilesystem(dir, publicURL string) (*Filesystem, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("filesystem store requires a root directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create object store root: %w", err)
	}
	if publicURL == "" {
		publicURL = "file://" + dir
	}
	return &Filesystem{root: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (f *Filesystem) objectPath(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimLeft(key, "/")))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(f.root, cleaned), nil
}

func (f *Filesystem) Download(ctx context.Context, key, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := f.objectPath(key)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return out.Close()
}

func (f *Filesystem) UploadFile(ctx context.Context, key, srcPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dest, err := f.objectPath(key)
	if err != nil {
		return 0, err
	}
	in, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create object directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create object %s: %w", key, err)
	}
	defer out.Close()

	size, err := io.Copy(out, in)
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	return size, out.Close()
}

func (f *Filesystem) UploadDir(ctx context.Context, prefix, dir string) (int64, error) {
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
		size, err := f.UploadFile(ctx, key, path)
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

func (f *Filesystem) URL(key string) string {
	return f.publicURL + "/" + strings.TrimLeft(key, "/")
}
