package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

var ErrUnsupportedContentType = errors.New("unsupported image content type")

// MediaStore is the object storage used for avatars and plan covers. Clients
// upload and download directly through presigned URLs.
type MediaStore interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	DeleteObject(ctx context.Context, objectKey string) error
}

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// ObjectKey builds a fresh key under prefix/owner for an image of contentType,
// e.g. avatars/<userId>/<uuid>.png.
func ObjectKey(prefix, owner, contentType string) (string, error) {
	ext, ok := imageExtensions[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
	return fmt.Sprintf("%s/%s/%s.%s", prefix, owner, uuid.NewString(), ext), nil
}

// OwnsKey reports whether key was issued under prefix/owner.
func OwnsKey(key, prefix, owner string) bool {
	return strings.HasPrefix(key, prefix+"/"+owner+"/") && !strings.Contains(key, "..")
}
