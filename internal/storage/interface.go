package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the subset of an object store the snapshot archive needs.
type ObjectStorage interface {
	// Upload writes an object under key, replacing any previous version.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// List returns keys starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
