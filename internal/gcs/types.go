package gcs

import (
	"context"
)

// ObjectStore provides an interface for the bucket operations the pipeline
// needs. This interface enables mocking and testing of storage functionality.
type ObjectStore interface {
	// PutObject writes data to the bucket under the given object name,
	// overwriting any existing object.
	PutObject(ctx context.Context, objectName string, data []byte, contentType string) error

	// ReadObject downloads the bytes of the given object.
	ReadObject(ctx context.Context, objectName string) ([]byte, error)

	// ListFolders lists the immediate sub-folders directly under prefix
	// (one level, not recursive), returned as full prefixes ending in "/".
	ListFolders(ctx context.Context, prefix string) ([]string, error)

	// ListObjects lists the object names directly under prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)

	// DeleteObjects deletes the given objects, best effort per object.
	DeleteObjects(ctx context.Context, objectNames []string) error

	// URI returns the gs:// URI of an object in the underlying bucket.
	URI(objectName string) string
}
