package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to cold storage. Implemented by the S3 layer.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
