// Package files holds small filesystem helpers shared by the hub and the CLI.
package files

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Exists returns true if the path exists and can be stat'ed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureParentDir creates the parent directory of path, if there is one.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %q", dir)
	}
	return nil
}
