// Package planner discovers candidate images and derives the per-image
// conversion task list for a run.
package planner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"imgcrunch/internal/config"
)

// Supported source extensions (lowercase, with leading dot).
var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
	".gif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// Extension → format bucket for dominant-format detection. Everything that is
// not HEIC/AVIF counts toward the jpeg bucket.
var extFormat = map[string]config.Format{
	".heic": config.FormatHEIC,
	".heif": config.FormatHEIC,
	".avif": config.FormatAVIF,
}

// Task is one scheduled conversion: an immutable (source, destination) pair.
type Task struct {
	Source string
	Dest   string
}

// Discover walks root and returns every regular file with a supported image
// extension, sorted lexicographically for a deterministic schedule. Files
// under any of the exclude directories (output, originals, staging) are
// skipped.
func Discover(root string, exclude []string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	excludeAbs := make([]string, 0, len(exclude))
	for _, dir := range exclude {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			excludeAbs = append(excludeAbs, filepath.Clean(abs))
		}
	}

	seen := make(map[string]bool)
	var images []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			for _, ex := range excludeAbs {
				if isWithin(path, ex) {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExtensions[ext] {
			return nil
		}
		if !seen[path] {
			seen[path] = true
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(images)
	return images, nil
}

// DetectDominantFormat buckets the discovered files by coarse format and
// returns the bucket holding a strict majority (>50%). Anything short of a
// majority falls back to JPEG so a handful of stray HEIC files cannot flip
// the default for a mostly-JPEG folder.
func DetectDominantFormat(paths []string) config.Format {
	if len(paths) == 0 {
		return config.FormatJPEG
	}

	counts := make(map[config.Format]int)
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		fmtKey, ok := extFormat[ext]
		if !ok {
			fmtKey = config.FormatJPEG
		}
		counts[fmtKey]++
	}

	dominant := config.FormatJPEG
	best := 0
	for _, f := range config.Formats {
		if counts[f] > best {
			dominant, best = f, counts[f]
		}
	}
	if best*2 > len(paths) {
		return dominant
	}
	return config.FormatJPEG
}

// PadWidth returns the zero-padding width for rename suffixes: the number of
// digits in the total count, with a floor of 3.
func PadWidth(total int) int {
	w := len(strconv.Itoa(total))
	if w < 3 {
		w = 3
	}
	return w
}

// BuildTasks derives a destination for every image and returns the schedule.
// With a rename base, outputs flatten into outputRoot as <base>_<NNN><ext>;
// otherwise the path relative to inputRoot is mirrored with the suffix
// swapped. Destination parents are created up front. A task whose destination
// resolves to its own source is dropped.
func BuildTasks(images []string, inputRoot, outputRoot string, format config.Format, renameBase string) ([]Task, error) {
	absInput, err := filepath.Abs(inputRoot)
	if err != nil {
		return nil, err
	}
	absOutput, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, err
	}

	ext := format.Extension()
	pad := PadWidth(len(images))

	tasks := make([]Task, 0, len(images))
	for i, src := range images {
		var dest string
		if renameBase != "" {
			name := fmt.Sprintf("%s_%0*d%s", renameBase, pad, i+1, ext)
			dest = filepath.Join(absOutput, name)
		} else {
			rel, err := filepath.Rel(absInput, src)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", src, err)
			}
			rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ext
			dest = filepath.Join(absOutput, rel)
		}

		if filepath.Clean(dest) == filepath.Clean(src) {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
		tasks = append(tasks, Task{Source: src, Dest: dest})
	}
	return tasks, nil
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..")
}
