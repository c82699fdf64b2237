package storage

import (
	"context"
	"io"
)

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket      string
	Key         string
	ContentType string
}

// Service stores migration artifacts in remote object storage.
type Service interface {
	Upload(ctx context.Context, body io.Reader, opts UploadOptions) (string, error)
}
