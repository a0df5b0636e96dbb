// Package archive keeps a copy of uploaded images for later inspection.
package archive

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"soilchat/internal/config"
)

// Store persists one upload and returns where it ended up.
type Store interface {
	Save(ctx context.Context, category, filename, contentType string, data []byte) (string, error)
}

// New builds the store selected by cfg.Archive.Backend. An empty or "none"
// backend disables archiving and returns a nil Store.
func New(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return nil, nil
	case "local":
		dir := cfg.Dir
		if dir == "" {
			dir = "./data/uploads"
		}
		return NewLocal(dir), nil
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", cfg.Backend)
	}
}

// Save is a nil-safe helper for optional stores.
func Save(ctx context.Context, s Store, category, filename, contentType string, data []byte) (string, error) {
	if s == nil {
		return "", nil
	}
	return s.Save(ctx, category, filename, contentType, data)
}

// objectName places uploads under category/yyyy/mm/dd.
func objectName(now time.Time, category, filename string) string {
	name := filepath.Base(filename)
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return path.Join(category, now.UTC().Format("2006/01/02"), name)
}
