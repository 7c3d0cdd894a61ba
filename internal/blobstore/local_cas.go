package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalCAS stores payloads in a local content-addressed tree.
type LocalCAS struct {
	root string
}

var _ BlobStore = (*LocalCAS)(nil)

// NewLocalCAS creates a local CAS rooted at root.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs}, nil
}

// Put writes data under its digest. Existing content is left untouched.
func (c *LocalCAS) Put(ctx context.Context, data []byte, _ string) (Ref, error) {
	var zero Ref
	if c == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	digest := digestOf(data)
	ref := Ref{Key: casKeyFromDigest(digest), SHA256: digest, SizeBytes: int64(len(data))}
	dst := filepath.Join(c.root, filepath.FromSlash(ref.Key))

	if _, err := os.Stat(dst); err == nil {
		return ref, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return zero, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return zero, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		// A concurrent writer may have won the rename with identical bytes.
		if _, statErr := os.Stat(dst); statErr == nil {
			return ref, nil
		}
		return zero, err
	}
	return ref, nil
}

// Get reads the payload stored under key.
func (c *LocalCAS) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// Delete removes a payload. Missing files are ignored.
func (c *LocalCAS) Delete(ctx context.Context, key string) error {
	if c == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := c.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (c *LocalCAS) pathFromKey(key string) (string, error) {
	clean, err := validateKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.root, filepath.FromSlash(clean)), nil
}
