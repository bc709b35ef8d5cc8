package domain

import (
	"context"
	"io"
)

// BlobWriter stores objects such as mirrored market images. contentType may
// be empty, in which case the store picks its default.
type BlobWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
	// PutMultipart streams large objects in parts of at least partSize bytes.
	PutMultipart(ctx context.Context, key string, data io.Reader, contentType string, partSize int64) error
}
