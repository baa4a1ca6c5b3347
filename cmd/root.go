package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"imgcrunch/internal/codec"
	"imgcrunch/internal/config"
	"imgcrunch/internal/pipeline"
	"imgcrunch/internal/tui"
	"imgcrunch/internal/wizard"
)

var (
	flagOutput  string
	flagFormat  string
	flagQuality int
	flagMaxSize int
	flagNoMove  bool
	flagReplace bool
	flagRename  string
	flagWizard  bool
	flagColor   string
)

var rootCmd = &cobra.Command{
	Use:   "imgcrunch [flags] [folder]",
	Short: "Batch convert and resize images, preserving metadata",
	Long: "imgcrunch converts a folder of images to JPEG, HEIC, or AVIF, downsizing\n" +
		"anything whose longest side exceeds the configured bound. EXIF metadata is\n" +
		"preserved. Run with a folder argument for a direct batch, or with no\n" +
		"arguments for the interactive wizard.",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, wizard.ErrAborted) {
			fmt.Fprintln(os.Stdout, "Aborted.")
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output folder (default: <folder>/converted)")
	rootCmd.Flags().StringVarP(&flagFormat, "format", "f", "jpeg", "output format: jpeg, heic, or avif")
	rootCmd.Flags().IntVarP(&flagQuality, "quality", "q", config.DefaultQuality, "quality 1-100")
	rootCmd.Flags().IntVarP(&flagMaxSize, "max-size", "m", config.DefaultMaxSize, "max longest side in px, 0 disables resizing")
	rootCmd.Flags().BoolVar(&flagNoMove, "no-move", false, "do not move originals to the originals folder")
	rootCmd.Flags().BoolVar(&flagReplace, "replace", false, "replace originals in place (destructive)")
	rootCmd.Flags().StringVar(&flagRename, "rename", "", "rename outputs as NAME_001, NAME_002, ...")
	rootCmd.Flags().BoolVar(&flagWizard, "wizard", false, "launch the interactive wizard")
	rootCmd.Flags().StringVar(&flagColor, "color", "auto", "color output: auto, always, or never")
}

func run(cmd *cobra.Command, args []string) error {
	colorMode := config.ColorMode(flagColor)
	styles := tui.NewStyles(colorsEnabled(colorMode))

	registry := codec.NewRegistry(codec.NewVipsBackend(), codec.NewNativeBackend())
	defer registry.Close()
	supports := func(f config.Format) bool {
		_, ok := registry.For(f)
		return ok
	}

	cfg, err := buildConfig(args, styles, supports)
	if err != nil {
		return err
	}
	cfg.ColorMode = colorMode

	printBanner(cfg, styles)

	updates := make(chan pipeline.ProgressUpdate, 64)
	program := tea.NewProgram(tui.NewModel(updates, styles))

	uiDone := make(chan struct{})
	go func() {
		_, _ = program.Run()
		close(uiDone)
	}()

	outcome, runErr := pipeline.Run(context.Background(), cfg, registry, updates)
	close(updates)
	<-uiDone

	if runErr != nil {
		if errors.Is(runErr, pipeline.ErrNoImages) {
			fmt.Fprintln(os.Stdout, styles.Warn.Render("No images found!"))
			return nil
		}
		return runErr
	}

	report(cfg, outcome, styles)
	return nil
}

func buildConfig(args []string, styles tui.Styles, supports wizard.Caps) (*config.Config, error) {
	if flagWizard || len(args) == 0 {
		prefill := ""
		if len(args) == 1 {
			prefill = args[0]
		}
		return wizard.Run(os.Stdin, os.Stdout, styles, prefill, supports)
	}

	format, err := config.ParseFormat(flagFormat)
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	cfg.InputDir = args[0]
	cfg.OutputDir = flagOutput
	cfg.Format = format
	cfg.Quality = flagQuality
	cfg.MaxSize = flagMaxSize
	cfg.Replace = flagReplace
	cfg.MoveOriginals = !flagNoMove && !flagReplace
	cfg.RenameBase = config.SanitizeBaseName(flagRename)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func printBanner(cfg *config.Config, styles tui.Styles) {
	line := func(label, value string) {
		fmt.Fprintf(os.Stdout, "  %s %s\n", styles.Label.Render(padLabel(label)), value)
	}

	fmt.Fprintln(os.Stdout)
	if cfg.Replace {
		line("Mode:", styles.Warn.Render("Replace in-place"))
	}
	line("Input folder:", cfg.InputDir)
	if !cfg.Replace {
		out := cfg.OutputDir
		if out == "" {
			out = filepath.Join(cfg.InputDir, config.OutputFolderName)
		}
		line("Output folder:", out)
	}
	line("Format:", strings.ToUpper(string(cfg.Format))+" ("+cfg.Format.Extension()+")")
	line("Quality:", strconv.Itoa(cfg.Quality))
	if cfg.MaxSize == 0 {
		line("Resize:", styles.Dim.Render("convert only"))
	} else {
		line("Max size:", fmt.Sprintf("%dpx longest side", cfg.MaxSize))
	}
	if cfg.RenameBase != "" {
		line("Rename:", fmt.Sprintf("%s_001, %s_002, ...", cfg.RenameBase, cfg.RenameBase))
	}
	line("Workers:", strconv.Itoa(pipeline.WorkerCount()))
	if !cfg.Replace && cfg.MoveOriginals {
		line("Originals:", "→ "+filepath.Join(cfg.InputDir, config.OriginalsDirName))
	}
	fmt.Fprintln(os.Stdout)
}

func padLabel(label string) string {
	const width = 15
	if len(label) >= width {
		return label
	}
	return label + strings.Repeat(" ", width-len(label))
}

func report(cfg *config.Config, outcome *pipeline.Outcome, styles tui.Styles) {
	for _, res := range outcome.Results {
		name := filepath.Base(res.Source)
		switch {
		case res.Err != nil:
			fmt.Fprintf(os.Stdout, "  %s %s: %v\n", styles.Error.Render("✗"), name, res.Err)
		case res.Resized:
			fmt.Fprintf(os.Stdout, "  %s %s %s\n", styles.Success.Render("✓"), name,
				styles.Dim.Render(fmt.Sprintf("(%dx%d → %dx%d)", res.OriginalWidth, res.OriginalHeight, res.Width, res.Height)))
		default:
			fmt.Fprintf(os.Stdout, "  %s %s\n", styles.Success.Render("✓"), name)
		}
	}
	for _, warning := range outcome.Warnings {
		fmt.Fprintf(os.Stdout, "  %s %s\n", styles.Warn.Render("⚠"), warning)
	}
	fmt.Fprintln(os.Stdout)

	stats := outcome.Stats
	rows := []tui.SummaryRow{
		{Label: "Images processed", Value: strconv.Itoa(stats.Processed)},
		{Label: "Images resized", Value: strconv.Itoa(stats.Resized)},
	}
	if stats.Errors > 0 {
		rows = append(rows, tui.SummaryRow{Label: "Errors", Value: strconv.Itoa(stats.Errors)})
	}
	if stats.Moved > 0 {
		rows = append(rows, tui.SummaryRow{Label: "Originals moved", Value: strconv.Itoa(stats.Moved)})
	}
	if stats.Replaced > 0 {
		rows = append(rows, tui.SummaryRow{Label: "Files replaced", Value: strconv.Itoa(stats.Replaced)})
	}
	if savings, ok := stats.SavingsPercent(); ok {
		rows = append(rows,
			tui.SummaryRow{Label: "Input size", Value: tui.FormatBytes(stats.TotalInputBytes)},
			tui.SummaryRow{Label: "Output size", Value: tui.FormatBytes(stats.TotalOutputBytes)},
			tui.SummaryRow{Label: "Savings", Value: formatSavings(savings, stats.SpaceSaved())},
		)
	}
	rows = append(rows, tui.SummaryRow{Label: "Time elapsed", Value: tui.FormatDuration(outcome.Elapsed)})
	if speed := stats.Throughput(outcome.Elapsed); speed > 0 {
		rows = append(rows, tui.SummaryRow{Label: "Speed", Value: fmt.Sprintf("%.1f images/sec", speed)})
	}

	fmt.Fprintln(os.Stdout, tui.RenderSummary("Processing summary", rows, styles))

	if stats.Errors > 0 {
		fmt.Fprintf(os.Stdout, "\n  %s\n",
			styles.Warn.Render(fmt.Sprintf("%d file(s) had errors and remain in the input folder for inspection", stats.Errors)))
	}
	if cfg.Replace {
		fmt.Fprintf(os.Stdout, "\n  Files replaced in: %s\n", cfg.InputDir)
	} else if outcome.OutputDir != "" {
		fmt.Fprintf(os.Stdout, "\n  Output saved to: %s\n", outcome.OutputDir)
	}
}

func formatSavings(pct float64, savedBytes int64) string {
	arrow := "↓"
	if pct < 0 {
		arrow = "↑"
		pct = -pct
		savedBytes = -savedBytes
	}
	return fmt.Sprintf("%s %.1f%% (%s)", arrow, pct, tui.FormatBytes(savedBytes))
}

// colorsEnabled resolves the color mode once at startup; the resulting style
// palette is injected everywhere instead of a process-global flag.
func colorsEnabled(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	return isTerminal(os.Stdout) && os.Getenv("NO_COLOR") == "" && strings.ToLower(os.Getenv("TERM")) != "dumb"
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
