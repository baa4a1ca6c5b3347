// Package config holds the run configuration shared by the CLI flags, the
// interactive wizard, and the conversion pipeline.
package config

import (
	"fmt"
	"strings"
)

// Format is a target image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatHEIC Format = "heic"
	FormatAVIF Format = "avif"
)

// Formats lists the selectable output formats in menu order.
var Formats = []Format{FormatJPEG, FormatHEIC, FormatAVIF}

// Extension returns the output file extension, including the leading dot.
func (f Format) Extension() string {
	switch f {
	case FormatHEIC:
		return ".heic"
	case FormatAVIF:
		return ".avif"
	default:
		return ".jpg"
	}
}

func (f Format) String() string { return string(f) }

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "heic", "heif":
		return FormatHEIC, nil
	case "avif":
		return FormatAVIF, nil
	}
	return "", fmt.Errorf("unknown format %q (use jpeg, heic, or avif)", s)
}

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

const (
	// DefaultMaxSize is the default bound on the longest image side, in pixels.
	DefaultMaxSize = 3000

	DefaultQuality  = 85
	MinResizeTarget = 100

	OutputFolderName  = "converted"
	OriginalsDirName  = "originals"
	StagingDirPattern = ".imgcrunch-staging-"
)

// Config describes one batch run. Populated either by CLI flags or by the
// interactive wizard, then validated before the pipeline consumes it.
type Config struct {
	// InputDir is the root folder scanned for images.
	InputDir string

	// OutputDir is the destination root. Empty means <InputDir>/converted.
	// Ignored in replace mode, where outputs go to a transient staging
	// directory inside InputDir.
	OutputDir string

	Format  Format
	Quality int // 1..100
	MaxSize int // longest-side bound in px; 0 disables resizing

	// Replace overwrites originals in place after a successful conversion.
	Replace bool

	// MoveOriginals relocates sources into an originals/ holding folder
	// after conversion. Only meaningful when Replace is false.
	MoveOriginals bool

	// RenameBase, when set, flattens output into OutputDir as
	// <base>_<NNN><ext> instead of mirroring the input tree.
	RenameBase string

	ColorMode ColorMode
}

// Default returns a Config with the stock defaults applied.
func Default() Config {
	return Config{
		Format:        FormatJPEG,
		Quality:       DefaultQuality,
		MaxSize:       DefaultMaxSize,
		MoveOriginals: true,
		ColorMode:     ColorAuto,
	}
}

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatJPEG, FormatHEIC, FormatAVIF:
	default:
		return fmt.Errorf("invalid format %q", c.Format)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be within 1-100, got %d", c.Quality)
	}
	if c.MaxSize != 0 && c.MaxSize < MinResizeTarget {
		return fmt.Errorf("max size must be 0 (no resizing) or at least %dpx", MinResizeTarget)
	}
	if c.InputDir == "" {
		return fmt.Errorf("input folder is required")
	}
	if c.Replace {
		if c.OutputDir != "" {
			return fmt.Errorf("--output cannot be combined with --replace")
		}
		if c.RenameBase != "" {
			return fmt.Errorf("--rename cannot be combined with --replace")
		}
	}
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever, "":
	default:
		return fmt.Errorf("invalid color mode %q (use auto, always, or never)", c.ColorMode)
	}
	return nil
}

// SanitizeBaseName normalizes a rename base: spaces become underscores and
// anything outside [A-Za-z0-9_-] is dropped. Returns "" when nothing usable
// remains, which callers treat as "keep original filenames".
func SanitizeBaseName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
