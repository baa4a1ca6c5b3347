package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"imgcrunch/internal/codec"
	"imgcrunch/internal/config"
	"imgcrunch/internal/metadata"
	"imgcrunch/internal/planner"
)

// Transformer converts one image per call. It holds no mutable state, so a
// single instance is shared across all pool workers.
type Transformer struct {
	Backend codec.Backend
	Format  config.Format
	Quality int
	MaxSize int
}

// Transform decodes, normalizes, optionally resizes, re-encodes, and writes
// the destination file. Every failure — including a panic from a codec — is
// captured on the Result so one bad file never disturbs its siblings.
func (t *Transformer) Transform(task planner.Task) (res Result) {
	res = Result{Source: task.Source, Dest: task.Dest}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("codec panic: %v", r)
		}
	}()

	fi, err := os.Stat(task.Source)
	if err != nil {
		res.Err = err
		return res
	}
	res.InputBytes = fi.Size()

	rawExif := metadata.Extract(task.Source)

	rendered, err := t.Backend.Render(codec.Request{
		SourcePath: task.Source,
		Format:     t.Format,
		Quality:    t.Quality,
		MaxSize:    t.MaxSize,
	})
	if err != nil {
		res.Err = err
		return res
	}

	res.OriginalWidth = rendered.OriginalWidth
	res.OriginalHeight = rendered.OriginalHeight
	res.Width = rendered.Width
	res.Height = rendered.Height
	res.Resized = rendered.Resized

	data := rendered.Data
	if len(rawExif) > 0 {
		dimsRewritten := false
		if rendered.Resized {
			updated, ok, err := metadata.UpdateDimensions(rawExif, rendered.Width, rendered.Height)
			if err != nil {
				res.MetadataDegraded = true
			} else if ok {
				rawExif = updated
				dimsRewritten = ok
			}
		}

		switch {
		case t.Format == config.FormatJPEG && (!rendered.MetadataCarried || dimsRewritten):
			embedded, err := metadata.InjectJPEG(data, rawExif)
			if err != nil {
				res.MetadataDegraded = true
			} else {
				data = embedded
			}
		case t.Format != config.FormatJPEG && !rendered.MetadataCarried:
			res.MetadataDegraded = true
		}
	}

	if err := writeAtomic(task.Dest, data, fi.Mode()); err != nil {
		res.Err = err
		return res
	}

	out, err := os.Stat(task.Dest)
	if err != nil {
		res.Err = err
		return res
	}
	res.OutputBytes = out.Size()
	return res
}

// writeAtomic writes data to a temp file in the destination directory, syncs,
// and renames it over dest so a crash never leaves a half-written output.
func writeAtomic(dest string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".imgcrunch-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(mode.Perm()); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return replaceFile(tmp.Name(), dest)
}

// replaceFile renames tmpPath over destPath, falling back to remove+rename
// on platforms where rename does not clobber.
func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
