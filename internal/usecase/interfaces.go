package usecase

import (
	"context"
	"io"
)

// Uploader is the blob store collaborator consumed by the image send path.
type Uploader interface {
	UploadFile(ctx context.Context, file io.Reader, contentType, folder string) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
}
