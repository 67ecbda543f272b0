package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirImageResolver resolves relative image paths against a fixed root
// directory, the same root the upload handlers write into. Paths that
// escape the root are rejected.
type DirImageResolver struct {
	Root string
}

func (r *DirImageResolver) Resolve(ctx context.Context, relPath string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid image path %q", relPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(r.Root, clean))
	if err != nil {
		return nil, fmt.Errorf("read image %q: %w", relPath, err)
	}
	return data, nil
}
