package gcsstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/booking-analytics/internal/gcs"
)

// Store implements gcs.ObjectStore against one GCS bucket with a shared
// client. It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
type Store struct {
	client *storage.Client
	bucket string
}

// NewStore creates a Store for the given bucket.
func NewStore(ctx context.Context, bucket string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStore: create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

// URI returns the gs:// URI of an object in the store's bucket.
func (s *Store) URI(objectName string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName)
}

// PutObject writes data under objectName, overwriting any existing object.
func (s *Store) PutObject(ctx context.Context, objectName string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("PutObject: writing %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("PutObject: finalize %s: %w", objectName, err)
	}
	return nil
}

// ReadObject downloads the bytes of the given object.
func (s *Store) ReadObject(ctx context.Context, objectName string) ([]byte, error) {
	rc, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: opening %s: %w", objectName, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: reading %s: %w", objectName, err)
	}
	return data, nil
}

// ListFolders lists the immediate sub-folders under prefix using a
// delimiter query, one level only.
func (s *Store) ListFolders(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	var folders []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListFolders: listing %s: %w", prefix, err)
		}
		// Common prefixes come back with Prefix set and Name empty.
		if attrs.Prefix != "" {
			folders = append(folders, attrs.Prefix)
		}
	}
	return folders, nil
}

// ListObjects lists object names directly under prefix.
func (s *Store) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListObjects: listing %s: %w", prefix, err)
		}
		if attrs.Name != "" {
			names = append(names, attrs.Name)
		}
	}
	return names, nil
}

// DeleteObjects deletes the given objects one by one. The first failure is
// returned; already-deleted objects are not an error.
func (s *Store) DeleteObjects(ctx context.Context, objectNames []string) error {
	bkt := s.client.Bucket(s.bucket)
	for _, name := range objectNames {
		if err := bkt.Object(name).Delete(ctx); err != nil && err != storage.ErrObjectNotExist {
			return fmt.Errorf("DeleteObjects: deleting %s: %w", name, err)
		}
	}
	return nil
}

var _ gcs.ObjectStore = (*Store)(nil)
