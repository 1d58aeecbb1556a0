package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// TempDir is the process-wide directory outbound media is staged in before
// the gateway fetches it back. Nothing here deletes staged files.
type TempDir struct {
	root string
}

// NewTempDir creates root if needed and pins its absolute form.
func NewTempDir(root string) (*TempDir, error) {
	if strings.TrimSpace(root) == "" {
		root = "tmp"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve temp root: %v", ErrStaging, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("%w: create temp root: %v", ErrStaging, err)
	}
	return &TempDir{root: abs}, nil
}

func (d *TempDir) Root() string {
	return d.root
}

// NewPath returns a fresh, collision-free path such as <root>/img_<uuid>.png.
func (d *TempDir) NewPath(prefix, ext string) string {
	return filepath.Join(d.root, prefix+"_"+uuid.NewString()+ext)
}

// Stage writes data under a fresh name and returns the path.
func (d *TempDir) Stage(prefix, ext string, data []byte) (string, error) {
	path := d.NewPath(prefix, ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStaging, err)
	}
	return path, nil
}

// Resolve maps a caller-supplied path to its absolute clean form and checks
// that it stays inside the root. Relative paths resolve against the working
// directory. When the target exists, symlinks are followed and the check is
// repeated on the real path.
func (d *TempDir) Resolve(raw string) (string, error) {
	clean, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPathTraversal, err)
	}
	if !within(d.root, clean) {
		return clean, ErrPathTraversal
	}

	real, err := filepath.EvalSymlinks(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return clean, nil
		}
		return clean, err
	}
	realRoot, err := filepath.EvalSymlinks(d.root)
	if err != nil {
		realRoot = d.root
	}
	if !within(realRoot, real) {
		return real, ErrPathTraversal
	}
	return real, nil
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}
