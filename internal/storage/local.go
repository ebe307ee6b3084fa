package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects on the local filesystem.
type Local struct {
	dir     string
	baseURL string
}

var _ Store = (*Local)(nil)

// NewLocal creates dir if needed. baseURL is the public prefix the directory
// is served under, e.g. "http://localhost:8080/public".
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("storage: creating upload dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory files are written to.
func (s *Local) Dir() string { return s.dir }

func (s *Local) Save(ctx context.Context, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := objectName(contentType)
	full := filepath.Join(s.dir, name)

	dst, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", name, err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(full)
		return "", fmt.Errorf("storage: writing %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("storage: closing %s: %w", name, err)
	}

	return s.baseURL + "/" + name, nil
}
