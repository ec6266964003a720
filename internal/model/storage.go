package model

import (
	"context"
	"io"
)

// Storage holds exam attachments in an object store, keyed by the value
// kept (encrypted) in Exam.AttachmentKey.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
