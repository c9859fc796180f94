// Package outdir creates the directory that receives per-file AST dumps.
package outdir

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// AlreadyExistsError is returned when the output directory exists before
// the run starts. Reusing a directory would mix artifacts from two runs.
type AlreadyExistsError struct {
	Path string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("output directory already exists: %s", e.Path)
}

// Is makes errors.Is(err, fs.ErrExist) hold.
func (e *AlreadyExistsError) Is(target error) bool {
	return target == fs.ErrExist
}

// Prepare creates path and any missing parents. The leaf is created with an
// exclusive mkdir, so a directory that exists (or appears concurrently) is
// reported as *AlreadyExistsError rather than silently reused.
func Prepare(fsys afero.Fs, path string) error {
	clean := filepath.Clean(path)

	if parent := filepath.Dir(clean); parent != clean {
		if err := fsys.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("outdir: creating parents of %s: %w", clean, err)
		}
	}

	if err := fsys.Mkdir(clean, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &AlreadyExistsError{Path: path}
		}
		return fmt.Errorf("outdir: creating %s: %w", clean, err)
	}
	return nil
}

// ArtifactPath returns where the dump for source lands inside dir: the
// source's base name, unchanged.
func ArtifactPath(dir, source string) string {
	return filepath.Join(dir, filepath.Base(source))
}
