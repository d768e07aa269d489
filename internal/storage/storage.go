package storage

import (
	"context"
	"io"
)

// FileStorage defines the interface for archive file storage
type FileStorage interface {
	// SaveFile saves a file under filename and returns its URL
	SaveFile(ctx context.Context, file io.Reader, filename string, contentType string) (string, error)
	// DeleteFile deletes a file by the URL SaveFile returned
	DeleteFile(ctx context.Context, fileURL string) error
}
