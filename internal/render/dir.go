package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var defaultExts = []string{".png", ".jpg", ".jpeg", ".webp"}

// DirCache serves pre-rendered artifacts from a directory, one file per brand
// named <brandID><ext>. It ignores title and content: whatever was rendered
// last for the brand is what gets published.
type DirCache struct {
	dir  string
	exts []string
	max  int64
}

func NewDirCache(dir string, maxBytes int64) *DirCache {
	if maxBytes <= 0 {
		maxBytes = 16 << 20
	}
	return &DirCache{dir: dir, exts: defaultExts, max: maxBytes}
}

func (c *DirCache) Render(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := strings.TrimSpace(req.BrandID)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("render: invalid brand id %q", req.BrandID)
	}

	for _, ext := range c.exts {
		path := filepath.Join(c.dir, id+ext)
		st, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("render: stat %s: %w", path, err)
		}
		if st.IsDir() || st.Size() == 0 {
			continue
		}
		if st.Size() > c.max {
			return "", fmt.Errorf("render: %s exceeds %d bytes", path, c.max)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("render: read %s: %w", path, err)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	}
	return "", fmt.Errorf("%w: no cached render for brand %q", ErrNoArtifact, id)
}
