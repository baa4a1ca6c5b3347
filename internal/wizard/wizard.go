// Package wizard collects a run configuration interactively. It produces a
// validated config.Config or reports that the user aborted; the pipeline
// never knows which path produced its configuration.
package wizard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"imgcrunch/internal/config"
	"imgcrunch/internal/planner"
	"imgcrunch/internal/tui"
)

// ErrAborted is returned when the user declines to start the run.
var ErrAborted = errors.New("aborted")

// Caps reports whether a target format can be encoded by the current build.
type Caps func(config.Format) bool

type prompter struct {
	in     *bufio.Scanner
	out    io.Writer
	styles tui.Styles
}

// Run walks the user through folder, mode, format, size, and rename choices,
// then asks for confirmation. prefillFolder, when non-empty, skips the folder
// prompt.
func Run(in io.Reader, out io.Writer, styles tui.Styles, prefillFolder string, supports Caps) (*config.Config, error) {
	p := &prompter{in: bufio.NewScanner(in), out: out, styles: styles}

	p.printf("\n%s\n\n", styles.Title.Render("imgcrunch — startup wizard"))

	folder, err := p.askFolder(prefillFolder)
	if err != nil {
		return nil, err
	}

	p.printf("  %s\n", styles.Dim.Render("Scanning folder..."))
	images, err := planner.Discover(folder, []string{
		filepath.Join(folder, config.OutputFolderName),
		filepath.Join(folder, config.OriginalsDirName),
	})
	if err != nil {
		return nil, err
	}
	detected := planner.DetectDominantFormat(images)
	p.printf("  %s\n\n", styles.Dim.Render(fmt.Sprintf("Found %d images", len(images))))

	replace, err := p.askMode()
	if err != nil {
		return nil, err
	}

	format, err := p.askFormat(detected, supports)
	if err != nil {
		return nil, err
	}

	maxSize, err := p.askMaxSize()
	if err != nil {
		return nil, err
	}

	renameBase := ""
	if !replace {
		renameBase, err = p.askRename()
		if err != nil {
			return nil, err
		}
	}

	cfg := config.Default()
	cfg.InputDir = folder
	cfg.Format = format
	cfg.MaxSize = maxSize
	cfg.Replace = replace
	cfg.MoveOriginals = !replace
	cfg.RenameBase = renameBase

	if err := p.confirm(&cfg, len(images)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (p *prompter) askFolder(prefill string) (string, error) {
	if prefill != "" {
		folder, err := resolveFolder(prefill)
		if err != nil {
			return "", err
		}
		p.printf("  %s\n\n", p.styles.Success.Render("Folder: "+folder))
		return folder, nil
	}

	p.printf("  %s\n", p.styles.Label.Render("Enter the path to the folder containing your images:"))
	for {
		answer, err := p.ask("Folder path: ")
		if err != nil {
			return "", err
		}
		answer = strings.Trim(answer, `"'`)
		if answer == "" {
			p.warn("Please enter a path.")
			continue
		}
		folder, err := resolveFolder(answer)
		if err != nil {
			p.warn(err.Error())
			continue
		}
		p.printf("  %s\n\n", p.styles.Success.Render("Folder: "+folder))
		return folder, nil
	}
}

func (p *prompter) askMode() (bool, error) {
	p.printf("  %s\n", p.styles.Label.Render("How should the output be handled?"))
	p.printf("    [1]  Keep originals   — output → %s/, originals → %s/\n", config.OutputFolderName, config.OriginalsDirName)
	p.printf("    [2]  Replace in-place — overwrite originals %s\n", p.styles.Warn.Render("(destructive)"))
	for {
		answer, err := p.ask("Your choice (1/2) [1]: ")
		if err != nil {
			return false, err
		}
		switch answer {
		case "", "1":
			p.printf("  %s\n\n", p.styles.Success.Render("Keep originals"))
			return false, nil
		case "2":
			p.printf("  %s\n\n", p.styles.Warn.Render("Replace mode — originals will be overwritten"))
			return true, nil
		}
		p.warn("Please enter 1 or 2.")
	}
}

var formatLabels = map[config.Format]string{
	config.FormatJPEG: "JPEG  (.jpg) — universal, great compression",
	config.FormatHEIC: "HEIC  (.heic) — Apple ecosystem, smaller files",
	config.FormatAVIF: "AVIF  (.avif) — next-gen, best compression",
}

func (p *prompter) askFormat(detected config.Format, supports Caps) (config.Format, error) {
	detectedIndex := 1
	for i, f := range config.Formats {
		if f == detected {
			detectedIndex = i + 1
		}
	}

	p.printf("  %s\n", p.styles.Label.Render("Which output format would you like?"))
	for i, f := range config.Formats {
		marker := ""
		if i+1 == detectedIndex {
			marker = p.styles.Success.Render("  ← detected")
		}
		p.printf("    [%d]  %s%s\n", i+1, formatLabels[f], marker)
	}

	for {
		answer, err := p.ask(fmt.Sprintf("Your choice (1/2/3) [%d]: ", detectedIndex))
		if err != nil {
			return "", err
		}
		if answer == "" {
			answer = strconv.Itoa(detectedIndex)
		}
		choice, err := strconv.Atoi(answer)
		if err != nil || choice < 1 || choice > len(config.Formats) {
			p.warn("Please enter 1, 2, or 3.")
			continue
		}
		format := config.Formats[choice-1]
		if !supports(format) {
			return "", fmt.Errorf("%s output requires a libvips build with %s support", strings.ToUpper(string(format)), strings.ToUpper(string(format)))
		}
		p.printf("  %s\n\n", p.styles.Success.Render("Format: "+strings.ToUpper(string(format))))
		return format, nil
	}
}

func (p *prompter) askMaxSize() (int, error) {
	p.printf("  %s\n", p.styles.Label.Render("What should the max longest side be (in pixels)?"))
	p.printf("  %s\n", p.styles.Dim.Render("Images larger than this will be resized down. Enter 0 to skip resizing."))
	for {
		answer, err := p.ask(fmt.Sprintf("Max longest side [%d]: ", config.DefaultMaxSize))
		if err != nil {
			return 0, err
		}
		if answer == "" {
			p.printf("  %s\n\n", p.styles.Success.Render(fmt.Sprintf("Max size: %dpx", config.DefaultMaxSize)))
			return config.DefaultMaxSize, nil
		}
		size, err := strconv.Atoi(answer)
		if err != nil {
			p.warn("Please enter a number.")
			continue
		}
		if size == 0 {
			p.printf("  %s\n\n", p.styles.Success.Render("No resizing — convert only"))
			return 0, nil
		}
		if size < config.MinResizeTarget {
			p.warn(fmt.Sprintf("Minimum is %dpx (or 0 to skip resizing).", config.MinResizeTarget))
			continue
		}
		p.printf("  %s\n\n", p.styles.Success.Render(fmt.Sprintf("Max size: %dpx", size)))
		return size, nil
	}
}

func (p *prompter) askRename() (string, error) {
	p.printf("  %s\n", p.styles.Label.Render("Rename all photos with a clean naming scheme?"))
	p.printf("  %s\n", p.styles.Dim.Render(`e.g. "vacation" → vacation_001.jpg, vacation_002.jpg (leave blank to keep original filenames)`))
	answer, err := p.ask("Base name [skip]: ")
	if err != nil {
		return "", err
	}
	if answer == "" {
		p.printf("\n")
		return "", nil
	}
	base := config.SanitizeBaseName(answer)
	if base == "" {
		p.warn("Invalid name, keeping original filenames.")
		p.printf("\n")
		return "", nil
	}
	p.printf("  %s\n\n", p.styles.Success.Render(fmt.Sprintf("Rename: %s_001, %s_002, ...", base, base)))
	return base, nil
}

func (p *prompter) confirm(cfg *config.Config, imageCount int) error {
	mode := "Keep originals"
	if cfg.Replace {
		mode = "Replace in-place"
	}
	sizeLabel := "no resizing"
	if cfg.MaxSize > 0 {
		sizeLabel = fmt.Sprintf("%dpx", cfg.MaxSize)
	}
	rows := []tui.SummaryRow{
		{Label: "Mode", Value: mode},
		{Label: "Format", Value: strings.ToUpper(string(cfg.Format))},
		{Label: "Max size", Value: sizeLabel},
		{Label: "Folder", Value: cfg.InputDir},
		{Label: "Quality", Value: strconv.Itoa(cfg.Quality)},
	}
	if !cfg.Replace {
		renameLabel := "keep originals"
		if cfg.RenameBase != "" {
			renameLabel = cfg.RenameBase + "_###"
		}
		rows = append(rows, tui.SummaryRow{Label: "Rename", Value: renameLabel})
	}
	rows = append(rows, tui.SummaryRow{Label: "Images", Value: strconv.Itoa(imageCount)})
	p.printf("%s\n", tui.RenderSummary("Run settings", rows, p.styles))

	if cfg.Replace {
		p.printf("\n  %s\n", p.styles.Warn.Render("WARNING: this will permanently replace your original files!"))
	}

	answer, err := p.ask("\nStart processing? (Y/n): ")
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "", "y", "yes":
		return nil
	}
	return ErrAborted
}

func (p *prompter) ask(prompt string) (string, error) {
	p.printf("  %s", p.styles.Label.Render(prompt))
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", ErrAborted
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *prompter) warn(msg string) {
	p.printf("  %s\n", p.styles.Warn.Render(msg))
}

func (p *prompter) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format, args...)
}

func resolveFolder(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("folder not found: %s", abs)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}
