// Package storage keeps uploaded post images.
//
// Two backends exist: Local writes into a directory that the server also
// serves under /public/, and GCS writes into a Google Cloud Storage bucket.
// Both name objects with a random UUID plus an extension derived from the
// content type, so client-supplied file names never reach the disk.
package storage

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Store saves an object and returns the public URL it can be fetched from.
type Store interface {
	Save(ctx context.Context, contentType string, r io.Reader) (string, error)
}

// AllowedTypes maps the image content types we accept to file extensions.
var AllowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func objectName(contentType string) string {
	return uuid.NewString() + AllowedTypes[contentType]
}
