// Package storage holds uploaded document bytes in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrWrite is returned (wrapped) when the backend rejects an object write.
	ErrWrite = errors.New("storage write failed")
	// ErrObjectNotFound is returned (wrapped) by Get when the key does not exist.
	ErrObjectNotFound = errors.New("stored object not found")
)

// Metadata keys written alongside every uploaded document.
const (
	MetaOriginalName = "original-filename"
	MetaContentHash  = "content-hash"
)

// PutObjectOptions describe one upload. Size is the exact byte count, or -1 when unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	URL          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the object store used by the ingestion pipeline.
type Storage interface {
	// Put uploads an object under the exact given key. Backend failures wrap ErrWrite.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get streams an object back for background extraction.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. It is the compensating action for Put, so a missing
	// key is not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the stable location of key. It performs no I/O.
	PublicURL(key string) string
}
