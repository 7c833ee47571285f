package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Local stores uploads on the local filesystem and serves them from a public
// URL prefix.
type Local struct {
	dir       string
	publicURL string
	logger    zerolog.Logger
}

// NewLocal constructs a local-disk storage rooted at dir. Files become
// reachable under publicURL, e.g. "/images/products".
func NewLocal(dir, publicURL string, logger zerolog.Logger) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Local{
		dir:       dir,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.With().Str("component", "local_storage").Logger(),
	}, nil
}

// Upload writes the file under a collision-free name and returns its public URL.
func (l *Local) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	fileName := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeName(name))
	path := filepath.Join(l.dir, fileName)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	l.logger.Debug().Str("file", fileName).Msg("image stored on local disk")

	return fmt.Sprintf("%s/%s", l.publicURL, fileName), nil
}

// sanitizeName keeps the base name and strips path separators and other
// characters that have no business in a served file name.
func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	if base == "" || base == "." {
		base = "upload"
	}
	return base
}
