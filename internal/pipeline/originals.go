package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"imgcrunch/internal/config"
)

// Originals applies the post-conversion fate of source files: either a
// non-destructive move into a holding directory, or an in-place replacement
// from the staging directory. All calls happen on the collector goroutine.
type Originals struct {
	InputRoot  string
	HoldingDir string // originals/ mirror root for move-aside
	Format     config.Format
}

// MoveAside relocates src into the holding directory, mirroring its path
// relative to the input root. Failure is a warning at the call site; the
// converted output is valid either way.
func (o *Originals) MoveAside(src string) error {
	rel, err := filepath.Rel(o.InputRoot, src)
	if err != nil {
		return err
	}
	dest := filepath.Join(o.HoldingDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return moveFile(src, dest)
}

// Replace performs the destructive step pair for one file: delete the
// original, then move its fully-written staged conversion to the original's
// path with the target extension substituted. The staged file is complete
// before anything is deleted, so a crash can at worst leave this one slot
// empty — never a half-written target.
func (o *Originals) Replace(src, staged string) (string, error) {
	final := strings.TrimSuffix(src, filepath.Ext(src)) + o.Format.Extension()
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("remove original: %w", err)
	}
	if err := moveFile(staged, final); err != nil {
		return "", fmt.Errorf("move staged file: %w", err)
	}
	return final, nil
}

// NewStaging creates the transient staging directory inside the input root
// so replace-mode outputs never land on a user-visible path.
func NewStaging(inputRoot string) (string, error) {
	return os.MkdirTemp(inputRoot, config.StagingDirPattern)
}

// CleanupStaging removes the staging directory. Best-effort, scoped, run
// once after the pool drains.
func CleanupStaging(dir string) {
	if dir != "" {
		_ = os.RemoveAll(dir)
	}
}

// moveFile renames src to dest, falling back to copy+remove across devices.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
