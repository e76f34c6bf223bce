// Package storage holds gift photos. Each gift has exactly one photo slot,
// addressed by the gift id, so a re-upload overwrites the previous image.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsupportedImage is returned for uploads that are not JPEG, PNG or WebP.
var ErrUnsupportedImage = errors.New("storage: unsupported image format")

// Uploader is the object store contract the api package depends on.
// Tests inject an in-memory stub.
type Uploader interface {
	// Put stores body at key, overwriting any existing object, and returns
	// the public URL of the object.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// CoverKey is the storage key of a gift's photo.
func CoverKey(giftID uuid.UUID) string {
	return giftID.String() + "/cover.jpg"
}

// PublicURL joins the public base URL of the bucket with an object key.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
