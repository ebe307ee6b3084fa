package storage

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

var _ Store = (*GCS)(nil)

// NewGCS connects to bucket. An empty credentialsFile falls back to
// application default credentials. extra is appended to the client options,
// e.g. to point the client at an emulator.
func NewGCS(ctx context.Context, bucket, credentialsFile string, extra ...option.ClientOption) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, extra...)

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: connecting to GCS: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (s *GCS) Save(ctx context.Context, contentType string, r io.Reader) (string, error) {
	name := objectName(contentType)

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("storage: uploading %s: %w", name, err)
	}
	// The object only exists once Close returns nil.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: finishing %s: %w", name, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name), nil
}

// Close releases the underlying client.
func (s *GCS) Close() error {
	return s.client.Close()
}
