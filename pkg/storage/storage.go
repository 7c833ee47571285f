package storage

import (
	"context"
	"io"
)

// FileStorage abstracts upload destinations for listing images.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}
