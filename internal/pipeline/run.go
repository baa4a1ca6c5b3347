// Package pipeline converts a folder of images: task derivation, parallel
// per-image transforms, original-file lifecycle, and outcome aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"imgcrunch/internal/codec"
	"imgcrunch/internal/config"
	"imgcrunch/internal/planner"
)

// ErrNoImages is returned when discovery finds nothing to convert.
var ErrNoImages = errors.New("no supported images found")

// Outcome is everything the reporting layer needs after a run.
type Outcome struct {
	Stats    RunStats
	Results  []Result // completion order
	Warnings []string // original-lifecycle warnings (non-fatal)
	Elapsed  time.Duration

	// OutputDir is the user-visible destination root ("" in replace mode).
	OutputDir string
}

// Run executes one batch: validate, plan, dispatch, collect. Configuration
// problems return an error before any task is scheduled; per-task failures
// are captured in Outcome.Results and never abort the batch. The updates
// channel, when non-nil, receives progress deltas for a live display.
func Run(ctx context.Context, cfg *config.Config, registry *codec.Registry, updates chan<- ProgressUpdate) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, ok := registry.For(cfg.Format)
	if !ok {
		return nil, fmt.Errorf("output format %q is not supported by this build (libvips without %s support)", cfg.Format, cfg.Format)
	}

	inputRoot, err := filepath.Abs(cfg.InputDir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(inputRoot)
	if err != nil {
		return nil, fmt.Errorf("input folder: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("input path is not a directory: %s", inputRoot)
	}

	var outputRoot, stagingDir, originalsDir string
	if cfg.Replace {
		stagingDir, err = NewStaging(inputRoot)
		if err != nil {
			return nil, fmt.Errorf("create staging directory: %w", err)
		}
		outputRoot = stagingDir
	} else {
		outputRoot = cfg.OutputDir
		if outputRoot == "" {
			outputRoot = filepath.Join(inputRoot, config.OutputFolderName)
		}
		if outputRoot, err = filepath.Abs(outputRoot); err != nil {
			return nil, err
		}
		// Excluded from discovery even when moving is off, so a rerun never
		// re-converts files a previous run set aside.
		originalsDir = filepath.Join(inputRoot, config.OriginalsDirName)
	}
	defer CleanupStaging(stagingDir)

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	exclude := []string{outputRoot, stagingDir}
	if originalsDir != "" {
		exclude = append(exclude, originalsDir)
	}
	images, err := planner.Discover(inputRoot, exclude)
	if err != nil {
		return nil, fmt.Errorf("scan input folder: %w", err)
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	tasks, err := planner.BuildTasks(images, inputRoot, outputRoot, cfg.Format, cfg.RenameBase)
	if err != nil {
		return nil, err
	}

	transformer := &Transformer{
		Backend: backend,
		Format:  cfg.Format,
		Quality: cfg.Quality,
		MaxSize: cfg.MaxSize,
	}
	originals := &Originals{
		InputRoot:  inputRoot,
		HoldingDir: originalsDir,
		Format:     cfg.Format,
	}

	outcome := &Outcome{Stats: RunStats{Total: len(tasks)}}
	if !cfg.Replace {
		outcome.OutputDir = outputRoot
	}
	send(updates, ProgressUpdate{TotalDelta: len(tasks)})

	start := time.Now()
	Dispatch(ctx, tasks, WorkerCount(), transformer.Transform, func(res Result) {
		outcome.Results = append(outcome.Results, res)
		outcome.Stats.Apply(res)

		if res.Err != nil {
			send(updates, ProgressUpdate{ErrorDelta: 1})
			return
		}

		update := ProgressUpdate{
			ProcessedDelta: 1,
			BytesInDelta:   res.InputBytes,
			BytesOutDelta:  res.OutputBytes,
		}
		if res.Resized {
			update.ResizedDelta = 1
		}
		send(updates, update)

		switch {
		case cfg.Replace:
			if _, err := originals.Replace(res.Source, res.Dest); err != nil {
				outcome.Warnings = append(outcome.Warnings,
					fmt.Sprintf("could not replace %s: %v", filepath.Base(res.Source), err))
			} else {
				outcome.Stats.Replaced++
			}
		case cfg.MoveOriginals:
			if err := originals.MoveAside(res.Source); err != nil {
				outcome.Warnings = append(outcome.Warnings,
					fmt.Sprintf("could not move %s: %v", filepath.Base(res.Source), err))
			} else {
				outcome.Stats.Moved++
			}
		}
	})
	outcome.Elapsed = time.Since(start)

	return outcome, nil
}

func send(updates chan<- ProgressUpdate, u ProgressUpdate) {
	if updates != nil {
		updates <- u
	}
}
