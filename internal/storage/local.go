package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStore keeps images on the local filesystem under root
type LocalStore struct {
	root      string
	publicURL string
	logger    *zap.Logger
}

// NewLocalStore creates root/products if needed
func NewLocalStore(root, publicURL string, logger *zap.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, strings.TrimSuffix(keyPrefix, "/")), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{root: abs, publicURL: publicURL, logger: logger}, nil
}

// Root returns the directory served under the public URL
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Put(ctx context.Context, img Image) (string, error) {
	if err := ValidateImage(img); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := newKey(img.Filename)
	fullPath := filepath.Join(s.root, filepath.FromSlash(key))

	out, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	// one extra byte detects bodies that lie about their size
	n, err := io.Copy(out, io.LimitReader(img.Content, MaxImageSize+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > MaxImageSize {
		err = fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	}
	if err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	s.logger.Debug("Stored image", zap.String("key", key), zap.Int64("bytes", n))
	return key, nil
}

// Delete refuses keys that resolve outside the products directory
func (s *LocalStore) Delete(_ context.Context, key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil
	}

	cleanRel := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(trimmed, "/")), "/")
	if !strings.HasPrefix(cleanRel, keyPrefix) {
		return fmt.Errorf("refusing to delete non-image path: %s", key)
	}

	target := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(cleanRel)))
	if !strings.HasPrefix(target, s.root+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside storage root: %s", key)
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	s.logger.Debug("Deleted image", zap.String("key", cleanRel))
	return nil
}

func (s *LocalStore) URL(key string) string {
	return joinURL(s.publicURL, key)
}
