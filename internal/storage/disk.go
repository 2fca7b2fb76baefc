package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// DiskBucket stores objects as files under a root directory.
type DiskBucket struct {
	*Signer
	root string
}

func NewDiskBucket(root string, signer *Signer) (*DiskBucket, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create bucket root: %w", err)
	}
	return &DiskBucket{Signer: signer, root: root}, nil
}

func (b *DiskBucket) filePath(objectPath string) (string, error) {
	clean, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

// Put overwrites any existing object at the same path.
func (b *DiskBucket) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	full, err := b.filePath(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), os.ModePerm); err != nil {
		return fmt.Errorf("put %s: %w", objectPath, err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("put %s: %w", objectPath, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("put %s: %w", objectPath, err)
	}
	return nil
}

func (b *DiskBucket) Get(ctx context.Context, objectPath string) (*Object, error) {
	full, err := b.filePath(objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get %s: %w", objectPath, err)
	}
	return &Object{Data: data, ContentType: http.DetectContentType(data)}, nil
}

func (b *DiskBucket) Ping(ctx context.Context) error {
	info, err := os.Stat(b.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("bucket root %s is not a directory", b.root)
	}
	return nil
}
