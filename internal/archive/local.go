package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local writes uploads below a base directory.
type Local struct {
	base string
	now  func() time.Time
}

func NewLocal(base string) *Local {
	return &Local{base: base, now: time.Now}
}

func (l *Local) Save(ctx context.Context, category, filename, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := filepath.FromSlash(objectName(l.now(), category, filename))
	destDir := filepath.Join(l.base, filepath.Dir(name))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	destPath := uniquePath(destDir, filepath.Base(name))
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return destPath, nil
}

// uniquePath appends " (n)" before the extension until the name is free.
func uniquePath(dir, filename string) string {
	destPath := filepath.Join(dir, filename)
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		return destPath
	}
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for idx := 1; idx <= 1000; idx++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, idx, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, time.Now().UnixNano(), ext))
}
