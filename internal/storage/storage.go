// Package storage keeps uploaded product images and resolves their public URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"techcart/internal/config"
	"techcart/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxImageSize is the largest accepted upload, 2 MiB
const MaxImageSize = 2 << 20

const keyPrefix = "products/"

var allowedExtensions = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
}

// Image is an upload waiting to be stored
type Image struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// ImageStore persists product images under relative keys
type ImageStore interface {
	// Put stores the image and returns its key, products/<uuid><ext>
	Put(ctx context.Context, img Image) (string, error)
	// Delete removes the asset; a missing asset is not an error
	Delete(ctx context.Context, key string) error
	// URL returns the public URL of key, or "" for an empty key
	URL(key string) string
}

// ValidateImage checks extension and size before anything is written
func ValidateImage(img Image) error {
	ext := strings.ToLower(filepath.Ext(img.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return domain.NewValidationError("image", "must be a file of type: jpeg, jpg, png, gif, svg, webp")
	}
	if img.Size > MaxImageSize {
		return domain.NewValidationError("image", "may not be greater than 2048 kilobytes")
	}
	return nil
}

func newKey(filename string) string {
	return keyPrefix + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}

func contentType(key string) string {
	if ct, ok := allowedExtensions[strings.ToLower(filepath.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func joinURL(base, key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// New builds the ImageStore selected by cfg.Driver
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ImageStore, error) {
	switch cfg.Driver {
	case config.StorageDriverLocal, "":
		return NewLocalStore(cfg.LocalDir, cfg.PublicURL, logger)
	case config.StorageDriverMinio:
		return NewMinioStore(ctx, cfg.Minio, cfg.PublicURL, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
